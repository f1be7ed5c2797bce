// voice drives the G1 from spoken commands transcribed in real time.
//
// Usage: voice [flags] <network_interface>
//
// Microphone capture uses PortAudio, which needs cgo and libportaudio and is
// only compiled in with the portaudio build tag:
//
//	go build -tags portaudio ./cmd/voice
//
// Without the tag only the mock backend is available and -audio auto fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-g1/internal/cli"
	"github.com/teslashibe/go-g1/internal/config"
	applog "github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/audioio"
	"github.com/teslashibe/go-g1/pkg/command"
	"github.com/teslashibe/go-g1/pkg/metrics"
	"github.com/teslashibe/go-g1/pkg/voice"
)

func main() {
	endpoint := flag.String("endpoint", "", "Loco service endpoint (overrides G1_ENDPOINT)")
	audio := flag.String("audio", string(audioio.BackendAuto), "Audio backend: auto, portaudio (needs -tags portaudio build), mock")
	sampleRate := flag.Int("sample-rate", 16000, "Capture and transcription sample rate (Hz)")
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
	logger := applog.With("cmd", "voice")

	vcfg := voice.DefaultConfig().
		WithAPIKey(cfg.AssemblyAIKey).
		WithSampleRate(*sampleRate).
		WithAudioBackend(audioio.Backend(*audio)).
		WithDebug(*debug)
	if err := vcfg.Validate(); err != nil {
		log.Fatalf("❌ Voice configuration error: %v (set ASSEMBLYAI_API_KEY)", err)
	}

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
	fmt.Println("Robot initialized!")

	interp := command.NewInterpreter(client, cfg.Speeds,
		command.WithLogger(logger),
		command.WithObserver(rec.ObserveCommand),
		command.WithNotifier(func(source string, a command.Action) {
			fmt.Println(a.Message)
		}),
	)

	src, err := audioio.NewSource(vcfg.Audio, logger)
	if err != nil {
		log.Fatalf("❌ Microphone: %v", err)
	}
	session, err := voice.NewSession(vcfg, interp, src,
		voice.WithLogger(logger),
		voice.WithTranscriptObserver(rec.ObserveTranscript),
	)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	fmt.Println("🎤 Listening for commands (Ctrl+C to exit)...")
	runErr := session.Run(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer stopCancel()
	if err := client.Move(stopCtx, 0, 0, 0); err != nil {
		fmt.Printf("Error stopping robot: %v\n", err)
	} else {
		fmt.Println("Robot stopped safely")
	}

	if runErr != nil {
		log.Fatalf("❌ Voice control error: %v", runErr)
	}
}
