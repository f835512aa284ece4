package server

import (
	"time"

	"netrush/internal/wire"
)

// gameOverResendSpacing is the interval between the three GAME_OVER sends
// (§4.7).
const gameOverResendSpacing = 50 * time.Millisecond

// enterGameOver transitions RUNNING→GAME_OVER and fires the triplicate
// GAME_OVER broadcast. The sends happen on their own goroutine so the
// scheduler/ingest tasks never block on the 100ms of spacing (§5
// "Suspension points").
func (s *Server) enterGameOver() {
	s.mu.Lock()
	if s.state == GameOver {
		s.mu.Unlock()
		return
	}
	s.state = GameOver

	winners := s.computeWinners()
	finalGrid := s.grid.NonEmptyCells()
	targets := s.clientAddrs()
	snapID := s.scheduler.currentID
	sch := s.scheduler
	sch.currentID++
	s.mu.Unlock()

	body := wire.EncodeGameOver(wire.GameOverRecord{Winners: winners, FinalGrid: finalGrid})

	pkt, err := wire.BuildPacket(wire.MsgGameOver, snapID, s.nextSeq(), nowMs(), body, true)
	if err != nil {
		s.logger.Printf("server: failed to build GAME_OVER: %v", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for i := 0; i < 3; i++ {
			s.broadcast(pkt, targets)
			if i < 2 {
				select {
				case <-s.stopCh:
					return
				case <-time.After(gameOverResendSpacing):
				}
			}
		}
	}()
}

// computeWinners returns every client whose cell count equals the max.
func (s *Server) computeWinners() []uint32 {
	counts := s.grid.OwnerCounts()
	maxCount := -1
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	var winners []uint32
	for owner, c := range counts {
		if c == maxCount {
			winners = append(winners, owner)
		}
	}
	return winners
}
