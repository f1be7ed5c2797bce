package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-g1/pkg/audioio"
	"github.com/teslashibe/go-g1/pkg/command"
	"github.com/teslashibe/go-g1/pkg/transcribe"
)

// Transcript kinds reported to the TranscriptObserver.
const (
	KindPartial = "partial"
	KindFinal   = "final"
	KindError   = "error"
)

// TranscriptObserver is notified of every transcriber event kind.
type TranscriptObserver func(kind string)

// Session dispatches spoken commands to the robot.
type Session struct {
	cfg     Config
	interp  *command.Interpreter
	source  audioio.Source
	factory TranscriberFactory
	out     io.Writer
	outMu   *sync.Mutex
	logger  *slog.Logger
	metrics *MetricsCollector
	observe TranscriptObserver
	running atomic.Bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithTranscriber replaces the provider transcriber.
func WithTranscriber(f TranscriberFactory) SessionOption {
	return func(s *Session) { s.factory = f }
}

// WithOutput sets where transcripts are echoed (default stdout). mu, if
// non-nil, is held for every write so output can be shared with the
// keyboard status line.
func WithOutput(w io.Writer, mu *sync.Mutex) SessionOption {
	return func(s *Session) {
		s.out = w
		if mu != nil {
			s.outMu = mu
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithTranscriptObserver sets a callback for transcript events.
func WithTranscriptObserver(o TranscriptObserver) SessionOption {
	return func(s *Session) { s.observe = o }
}

// NewSession validates cfg and creates a session.
func NewSession(cfg Config, interp *command.Interpreter, source audioio.Source, opts ...SessionOption) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if interp == nil || source == nil {
		return nil, errors.New("voice: interpreter and audio source are required")
	}

	s := &Session{
		cfg:     cfg,
		interp:  interp,
		source:  source,
		factory: AssemblyAI,
		out:     os.Stdout,
		outMu:   &sync.Mutex{},
		metrics: NewMetricsCollector(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "voice", "provider", cfg.Provider)
	return s, nil
}

// Metrics returns the session's metrics collector.
func (s *Session) Metrics() *MetricsCollector {
	return s.metrics
}

func (s *Session) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *Session) event(kind string) {
	if s.observe != nil {
		s.observe(kind)
	}
}

// Run connects the transcriber, starts the microphone and dispatches final
// transcripts until ctx is cancelled or the session ends. Cancellation is
// not an error.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t, err := s.factory(s.cfg, s.callbacks(ctx), s.logger)
	if err != nil {
		return fmt.Errorf("voice: create transcriber: %w", err)
	}
	if err := t.Connect(ctx); err != nil {
		return fmt.Errorf("voice: connect: %w", err)
	}
	defer func() {
		if err := t.Close(); err != nil {
			s.logger.Warn("close transcriber", "error", err)
		}
	}()

	if err := s.source.Start(ctx); err != nil {
		return fmt.Errorf("voice: start %s audio: %w", s.source.Name(), err)
	}
	defer s.source.Stop()

	s.logger.Info("voice session running", "audio", s.source.Name(), "sample_rate", s.cfg.SampleRate)

	err = t.Stream(ctx, audioio.PCM(ctx, s.source))
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("voice: stream: %w", err)
	}
	return nil
}

func (s *Session) callbacks(ctx context.Context) Callbacks {
	return Callbacks{
		OnOpen: func(id string) {
			s.printf("Voice control session started: %s\n", id)
		},
		OnData: func(tr transcribe.Transcript) {
			if tr.Text == "" {
				return
			}
			if !tr.Final {
				s.metrics.MarkPartial()
				s.event(KindPartial)
				s.printf("Listening: %s\r", tr.Text)
				return
			}
			s.metrics.MarkFinal(tr.Text)
			s.event(KindFinal)
			s.printf("\nVoice command: %s\n", tr.Text)
			s.dispatch(ctx, tr.Text)
		},
		OnError: func(err error) {
			s.metrics.MarkError()
			s.event(KindError)
			s.printf("Voice control error: %v\n", err)
		},
		OnClose: func() {
			s.printf("Voice control session closed\n")
		},
	}
}

func (s *Session) dispatch(ctx context.Context, text string) {
	action, ok, err := s.interp.Execute(ctx, text)
	s.metrics.MarkDispatched(action.Name, ok, err)

	switch {
	case err != nil:
		s.printf("Error executing %q: %v\n", text, err)
	case !ok:
		s.logger.Debug("no command in transcript", "text", text)
	case s.cfg.Debug:
		if m, ok := s.metrics.Last(); ok {
			s.logger.Debug("voice command dispatched", "action", action.Name, "latency", m.FormatLatency())
		}
	}
}
