// Package teleop runs keyboard and voice control of the G1 together.
//
// The keyboard loop runs in the foreground. Voice control, when enabled,
// runs beside it and dispatches through the same interpreter, so both
// inputs share one serialized loco client. A voice failure is reported and
// keyboard control carries on. However the loop ends, the robot is sent a
// zero velocity before Run returns.
package teleop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-g1/pkg/audioio"
	"github.com/teslashibe/go-g1/pkg/command"
	"github.com/teslashibe/go-g1/pkg/keyboard"
	"github.com/teslashibe/go-g1/pkg/loco"
	"github.com/teslashibe/go-g1/pkg/voice"
)

// StopTimeout bounds the final stop command.
const StopTimeout = 3 * time.Second

// KeyReader returns one key press per call.
type KeyReader interface {
	ReadKey(ctx context.Context) (rune, error)
}

// VoiceRunner runs voice control until ctx ends.
type VoiceRunner interface {
	Run(ctx context.Context) error
}

// VoiceFactory builds the voice runner once the interpreter exists. Output
// written to out must hold mu.
type VoiceFactory func(interp *command.Interpreter, out io.Writer, mu *sync.Mutex) (VoiceRunner, error)

// initializer is implemented by controllers that need a handshake, such as
// *loco.Client.
type initializer interface {
	Init(ctx context.Context) error
}

// App is the teleoperation application.
type App struct {
	ctrl   loco.Controller
	keys   KeyReader
	speeds command.Speeds
	interp *command.Interpreter

	confirm   io.Reader
	out       io.Writer
	outMu     sync.Mutex
	newVoice  VoiceFactory
	voice     VoiceRunner
	observers []command.Observer
	logger    *slog.Logger
}

// Option configures an App.
type Option func(*App)

// WithConfirm makes Init wait for Enter on r. Without it Init does not wait.
func WithConfirm(r io.Reader) Option {
	return func(a *App) { a.confirm = r }
}

// WithOutput sets where the banner, help and status line go (default stdout).
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithVoice enables voice control.
func WithVoice(f VoiceFactory) Option {
	return func(a *App) { a.newVoice = f }
}

// WithCommandObserver adds an observer of every robot command.
func WithCommandObserver(o command.Observer) Option {
	return func(a *App) { a.observers = append(a.observers, o) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New creates an App driving ctrl from keys.
func New(ctrl loco.Controller, keys KeyReader, speeds command.Speeds, opts ...Option) *App {
	a := &App{
		ctrl:   ctrl,
		keys:   keys,
		speeds: speeds,
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "teleop")

	a.interp = command.NewInterpreter(ctrl, speeds,
		command.WithLogger(a.logger),
		command.WithNotifier(a.notify),
		command.WithObserver(a.observe),
	)
	return a
}

// Interpreter returns the interpreter shared by keyboard and voice.
func (a *App) Interpreter() *command.Interpreter {
	return a.interp
}

func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

// notify echoes progress messages before the robot command is sent.
func (a *App) notify(source string, act command.Action) {
	if act.Message == "" {
		return
	}
	if source == command.SourceKeyboard {
		a.printf("\n%s\n", act.Message)
		return
	}
	a.printf("%s\n", act.Message)
}

func (a *App) observe(source string, act command.Action, err error) {
	for _, o := range a.observers {
		o(source, act, err)
	}
}

// Init shows the safety banner, waits for confirmation, initializes the
// robot and prepares voice control.
func (a *App) Init(ctx context.Context) error {
	a.printf("🤖 G1 Teleoperation\n")
	a.printf("===================\n")
	a.printf("⚠️  WARNING: Please ensure there are no obstacles around the robot.\n")
	if a.confirm != nil {
		a.printf("Press Enter when ready...")
		if err := keyboard.WaitEnter(a.confirm); err != nil {
			return fmt.Errorf("teleop: confirm: %w", err)
		}
	}

	if r, ok := a.ctrl.(initializer); ok {
		a.printf("🔧 Initializing robot... ")
		if err := r.Init(ctx); err != nil {
			a.printf("❌\n")
			return fmt.Errorf("teleop: robot init: %w", err)
		}
		a.printf("✅\n")
	}

	if a.newVoice != nil {
		v, err := a.newVoice(a.interp, a.out, &a.outMu)
		if err != nil {
			a.printf("⚠️  Voice control unavailable: %v\n", err)
			a.logger.Warn("voice disabled", "error", err)
		} else {
			a.voice = v
		}
	}
	return nil
}

// Run prints the controls and reads keys until Esc, Ctrl-C, end of input,
// ctx cancellation or a failed movement command, which is returned. The
// robot is always stopped before Run returns.
func (a *App) Run(ctx context.Context) error {
	if a.voice != nil {
		a.printf("🎤 Voice control enabled\n")
	}
	a.printf("%s", a.interp.ControlsHelp())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if a.voice != nil {
		g.Go(func() error {
			if err := a.voice.Run(gctx); err != nil {
				a.printf("\n⚠️  Voice control stopped: %v\n", err)
				a.logger.Error("voice control failed", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		return a.keyLoop(gctx)
	})

	err := g.Wait()
	if errors.Is(err, keyboard.ErrInterrupted) {
		a.printf("\nProgram interrupted by user\n")
		err = nil
	}
	a.stop()
	return err
}

func (a *App) keyLoop(ctx context.Context) error {
	for {
		key, err := a.keys.ReadKey(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		res, err := a.interp.HandleKey(ctx, key)
		if res.Quit {
			a.printf("\n%s\n", res.Action.Message)
			return nil
		}
		if err != nil && res.Fatal {
			a.printf("\rCurrent Status: %s", res.Status)
			a.printf("\nError occurred: %v\n", err)
			return fmt.Errorf("teleop: %w", err)
		}
		if err != nil {
			a.printf("\nError: %v\n", err)
		}
		a.printf("\rCurrent Status: %s", res.Status)
	}
}

// stop sends a zero velocity on a fresh context so it still reaches the
// robot after cancellation.
func (a *App) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), StopTimeout)
	defer cancel()
	if err := a.ctrl.Move(ctx, 0, 0, 0); err != nil {
		a.printf("\nError stopping robot: %v\n", err)
		a.logger.Error("stop failed", "error", err)
		return
	}
	a.printf("\nRobot stopped safely\n")
}

// Shutdown releases the controller if it holds a connection.
func (a *App) Shutdown() {
	if c, ok := a.ctrl.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("close controller", "error", err)
		}
	}
}

// Voice returns a VoiceFactory that captures from the configured microphone
// and streams to the configured transcriber.
func Voice(cfg voice.Config, logger *slog.Logger, opts ...voice.SessionOption) VoiceFactory {
	return func(interp *command.Interpreter, out io.Writer, mu *sync.Mutex) (VoiceRunner, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		src, err := audioio.NewSource(cfg.Audio, logger)
		if err != nil {
			return nil, err
		}
		all := append([]voice.SessionOption{
			voice.WithOutput(out, mu),
			voice.WithLogger(logger),
		}, opts...)
		s, err := voice.NewSession(cfg, interp, src, all...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
