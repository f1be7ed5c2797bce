// walk runs a scripted locomotion sequence on the G1: the built-in walk
// demo, or a YAML sequence file.
//
// Usage: walk [flags] <network_interface>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-g1/internal/cli"
	"github.com/teslashibe/go-g1/internal/config"
	applog "github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/command"
	"github.com/teslashibe/go-g1/pkg/metrics"
	"github.com/teslashibe/go-g1/pkg/sequence"
)

func main() {
	file := flag.String("file", "", "YAML sequence to run instead of the walk demo")
	endpoint := flag.String("endpoint", "", "Loco service endpoint (overrides G1_ENDPOINT)")
	check := flag.Bool("check", false, "Validate the sequence and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	seq := sequence.WalkDemo()
	if *file != "" {
		var err error
		if seq, err = sequence.Load(*file); err != nil {
			log.Fatalf("❌ %v", err)
		}
	}
	if *check {
		if err := seq.Validate(); err != nil {
			log.Fatalf("❌ %s: %v", seq.Name, err)
		}
		fmt.Printf("✅ %s: %d steps, %v\n", seq.Name, len(seq.Steps), seq.Duration())
		return
	}

	iface := config.NetworkInterfaceRequired(flag.Args())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	applog.Init(cfg.LogLevel)
	logger := applog.With("cmd", "walk")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rec := metrics.New(nil)
	cli.ServeMetrics(ctx, cfg, rec, logger)

	client, err := cli.Connect(ctx, cfg, iface, rec, logger)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer client.Close()
	if err := client.Init(ctx); err != nil {
		log.Fatalf("❌ Robot initialization failed: %v", err)
	}

	interp := command.NewInterpreter(client, cfg.Speeds,
		command.WithLogger(logger),
		command.WithObserver(rec.ObserveCommand),
	)
	runner := sequence.NewRunner(client,
		sequence.WithInterpreter(interp),
		sequence.WithLogger(logger),
	)

	if err := runner.Run(ctx, seq); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\nProgram interrupted by user")
			return
		}
		log.Fatalf("❌ %v", err)
	}
}
