// g1-sim serves a simulated G1 loco service for development without a
// robot. Point the other commands at it with G1_ENDPOINT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/teslashibe/go-g1/internal/config"
	applog "github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/sim"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP and websocket listen address")
	natsURL := flag.String("nats", "", "Also answer RPCs on this NATS server (e.g. nats://127.0.0.1:4222)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	applog.Init(*logLevel)
	logger := applog.With("cmd", "g1-sim")

	robot := sim.NewRobot(sim.WithLogger(logger))
	srv := sim.NewServer(robot, logger)

	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL, nats.Name("g1-sim"))
		if err != nil {
			log.Fatalf("❌ NATS: %v", err)
		}
		defer nc.Drain()
		if _, err := sim.ServeNATS(nc, robot); err != nil {
			log.Fatalf("❌ %v", err)
		}
		fmt.Printf("📡 NATS: %s\n", *natsURL)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	fmt.Printf("🤖 G1 loco simulator: http://localhost%s (ws://localhost%s/ws)\n", *addr, *addr)
	if err := srv.Listen(*addr); err != nil {
		log.Fatalf("❌ %v", err)
	}
	applog.Info("simulator stopped", "requests", robot.Snapshot().Requests)
	fmt.Println("👋 Simulator stopped")
}
