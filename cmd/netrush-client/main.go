package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"netrush/internal/client"
	"netrush/internal/config"
	"netrush/internal/metrics"
	"netrush/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "optional TOML config file")
	serverHost := flag.String("server-host", "127.0.0.1", "server address to connect to")
	serverPort := flag.Int("server-port", 5000, "server port to connect to")
	metricsPath := flag.String("metrics", "", "optional CSV path for per-packet client metrics")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("netrush-client: config: %v", err)
	}

	var sink metrics.ClientSink
	if *metricsPath != "" {
		csvSink, err := metrics.NewCSVClientSink(*metricsPath)
		if err != nil {
			log.Fatalf("netrush-client: metrics sink: %v", err)
		}
		defer csvSink.Close()
		sink = csvSink
	}

	endpoint, err := transport.Listen(net.JoinHostPort("0.0.0.0", "0"))
	if err != nil {
		log.Fatalf("netrush-client: bind local socket: %v", err)
	}
	defer endpoint.Close()

	serverAddr, err := transport.ResolveAddr(net.JoinHostPort(*serverHost, strconv.Itoa(*serverPort)))
	if err != nil {
		log.Fatalf("netrush-client: resolve server address: %v", err)
	}

	logger := log.New(os.Stdout, "netrush-client: ", log.LstdFlags)
	c := client.New(cfg, endpoint, serverAddr, sink, logger)

	c.AddStateListener(func(s client.State) {
		logger.Printf("state -> %v", s)
	})
	c.AddGameOverListener(func(winners []uint32) {
		logger.Printf("game over, winners: %v", winners)
	})

	if err := c.Start(); err != nil {
		log.Fatalf("netrush-client: start: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Printf("shutting down")
	c.Stop()
}
