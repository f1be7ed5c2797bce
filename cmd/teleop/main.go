// teleop drives the G1 from the keyboard and, optionally, by voice.
//
// Usage: teleop [flags] <network_interface>
//
// Microphone capture uses PortAudio, which needs cgo and libportaudio and is
// only compiled in with the portaudio build tag:
//
//	go build -tags portaudio ./cmd/teleop
//
// Without the tag only the mock backend is available and -audio auto fails.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-g1/internal/cli"
	"github.com/teslashibe/go-g1/internal/config"
	applog "github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/audioio"
	"github.com/teslashibe/go-g1/pkg/keyboard"
	"github.com/teslashibe/go-g1/pkg/metrics"
	"github.com/teslashibe/go-g1/pkg/teleop"
	"github.com/teslashibe/go-g1/pkg/voice"
)

func main() {
	endpoint := flag.String("endpoint", "", "Loco service endpoint (overrides G1_ENDPOINT)")
	noVoice := flag.Bool("no-voice", false, "Disable voice control")
	audio := flag.String("audio", string(audioio.BackendAuto), "Audio backend: auto, portaudio (needs -tags portaudio build), mock")
	yes := flag.Bool("yes", false, "Skip the safety confirmation")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

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
	logger := applog.With("cmd", "teleop")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rec := metrics.New(nil)
	cli.ServeMetrics(ctx, cfg, rec, logger)

	client, err := cli.Connect(ctx, cfg, iface, rec, logger)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	// The keyboard goes raw only after the Enter prompt, which needs
	// line input.
	keys := &lazyKeys{}
	opts := []teleop.Option{
		teleop.WithLogger(logger),
		teleop.WithOutput(keyboard.CRLF(os.Stdout)),
		teleop.WithCommandObserver(rec.ObserveCommand),
	}
	if !*yes {
		opts = append(opts, teleop.WithConfirm(os.Stdin))
	}
	if !*noVoice {
		vcfg := voice.DefaultConfig().
			WithAPIKey(cfg.AssemblyAIKey).
			WithAudioBackend(audioio.Backend(*audio)).
			WithDebug(*debug)
		opts = append(opts, teleop.WithVoice(teleop.Voice(vcfg, logger,
			voice.WithTranscriptObserver(rec.ObserveTranscript),
		)))
	}

	app := teleop.New(client, keys, cfg.Speeds, opts...)
	defer app.Shutdown()
	if err := app.Init(ctx); err != nil {
		log.Fatalf("❌ Initialization failed: %v", err)
	}

	term, err := keyboard.OpenTerminal()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	keys.r = term

	runErr := app.Run(ctx)
	term.Close()
	if runErr != nil {
		log.Fatalf("❌ Runtime error: %v", runErr)
	}
}

// lazyKeys defers to a terminal reader opened after Init.
type lazyKeys struct {
	r *keyboard.Reader
}

func (k *lazyKeys) ReadKey(ctx context.Context) (rune, error) {
	return k.r.ReadKey(ctx)
}
