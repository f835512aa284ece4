package main

import (
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"netrush/internal/config"
	"netrush/internal/metrics"
	"netrush/internal/server"
	"netrush/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "optional TOML config file")
	host := flag.String("host", "", "override server_host")
	port := flag.Int("port", 0, "override server_port")
	metricsPath := flag.String("metrics", "", "optional CSV path for per-tick server metrics")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("netrush-server: config: %v", err)
	}
	if *host != "" {
		cfg.ServerHost = *host
	}
	if *port != 0 {
		cfg.ServerPort = *port
	}

	var sink metrics.ServerSink
	if *metricsPath != "" {
		csvSink, err := metrics.NewCSVServerSink(*metricsPath)
		if err != nil {
			log.Fatalf("netrush-server: metrics sink: %v", err)
		}
		defer csvSink.Close()
		sink = csvSink
	}

	bindAddr := net.JoinHostPort(cfg.ServerHost, strconv.Itoa(cfg.ServerPort))
	endpoint, err := transport.Listen(bindAddr)
	if err != nil {
		log.Fatalf("netrush-server: listen %s: %v", bindAddr, err)
	}
	defer endpoint.Close()

	logger := log.New(os.Stdout, "netrush-server: ", log.LstdFlags)
	srv := server.New(cfg, endpoint, sink, logger)
	if err := srv.Start(); err != nil {
		log.Fatalf("netrush-server: start: %v", err)
	}
	logger.Printf("listening on %s (grid %dx%d, max clients %d)", bindAddr, cfg.GridSide, cfg.GridSide, cfg.MaxClients)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Printf("shutting down")
	srv.Stop()
}
