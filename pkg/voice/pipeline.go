package voice

import (
	"context"
	"errors"
	"log/slog"

	"github.com/teslashibe/go-g1/pkg/transcribe"
)

// Common errors returned by sessions.
var (
	ErrMissingAPIKey  = errors.New("voice: missing API key")
	ErrAlreadyStarted = errors.New("voice: session already running")
)

// Transcriber streams audio to a speech-to-text service.
type Transcriber interface {
	// Connect opens the session.
	Connect(ctx context.Context) error

	// Stream sends audio until the channel closes, ctx ends or the
	// session ends.
	Stream(ctx context.Context, pcm <-chan []byte) error

	// Close terminates the session.
	Close() error
}

// Callbacks receives transcriber events.
type Callbacks struct {
	OnOpen  func(sessionID string)
	OnData  func(t transcribe.Transcript)
	OnError func(err error)
	OnClose func()
}

// TranscriberFactory creates a Transcriber that reports to cb.
type TranscriberFactory func(cfg Config, cb Callbacks, logger *slog.Logger) (Transcriber, error)

// AssemblyAI creates a realtime AssemblyAI transcriber.
func AssemblyAI(cfg Config, cb Callbacks, logger *slog.Logger) (Transcriber, error) {
	if cfg.AssemblyAIKey == "" {
		return nil, ErrMissingAPIKey
	}
	opts := []transcribe.Option{
		transcribe.WithSampleRate(cfg.SampleRate),
		transcribe.WithLogger(logger),
	}
	if cfg.RealtimeURL != "" {
		opts = append(opts, transcribe.WithURL(cfg.RealtimeURL))
	}

	c := transcribe.NewClient(cfg.AssemblyAIKey, opts...)
	c.OnOpen = cb.OnOpen
	c.OnData = cb.OnData
	c.OnError = cb.OnError
	c.OnClose = cb.OnClose
	return c, nil
}

var _ Transcriber = (*transcribe.Client)(nil)
