package sequence

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/teslashibe/go-g1/pkg/command"
	"github.com/teslashibe/go-g1/pkg/loco"
)

// stopTimeout bounds the final stop sent after cancellation or failure.
const stopTimeout = 2 * time.Second

// Runner executes sequences against a controller.
type Runner struct {
	ctrl   loco.SequenceController
	interp *command.Interpreter
	out    io.Writer
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithInterpreter enables "command" steps.
func WithInterpreter(i *command.Interpreter) Option {
	return func(r *Runner) { r.interp = i }
}

// WithOutput sets where step lines are printed (default stdout).
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner for ctrl.
func NewRunner(ctrl loco.SequenceController, opts ...Option) *Runner {
	r := &Runner{ctrl: ctrl, out: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "sequence")
	return r
}

// Run executes seq step by step. If ctx is cancelled the robot is sent a
// final stop and ctx.Err() is returned. A velocity still commanded when Run
// returns, after a failed step or a trailing move, is stopped the same way.
func (r *Runner) Run(ctx context.Context, seq Sequence) error {
	if err := seq.Validate(); err != nil {
		return err
	}
	r.logger.Info("sequence started", "name", seq.Name, "steps", len(seq.Steps), "duration", seq.Duration())

	moving := false
	defer func() {
		if moving && ctx.Err() == nil {
			r.halt(ctx, "robot left moving, stopped")
		}
	}()

	if seq.Start != "" {
		fmt.Fprintln(r.out, seq.Start)
	}
	for i, st := range seq.Steps {
		if st.Say != "" {
			fmt.Fprintln(r.out, st.Say)
		}
		if movesRobot(st) {
			moving = true
		}
		if err := r.step(ctx, st); err != nil {
			if ctx.Err() != nil {
				return r.abort(ctx)
			}
			return fmt.Errorf("step %d (%s): %w", i+1, st.Action, err)
		}
		if st.Action == ActionStop {
			moving = false
		}
		if err := hold(ctx, st.Hold); err != nil {
			return r.abort(ctx)
		}
	}
	if seq.Done != "" {
		fmt.Fprintln(r.out, seq.Done)
	}
	r.logger.Info("sequence finished", "name", seq.Name)
	return nil
}

// movesRobot reports whether st leaves a continuous velocity commanded.
// Command steps use Move, which expires on its own.
func movesRobot(st Step) bool {
	if st.Action != ActionMove {
		return false
	}
	return st.Args[0] != 0 || st.Args[1] != 0 || st.Args[2] != 0
}

func (r *Runner) abort(ctx context.Context) error {
	r.halt(ctx, "sequence cancelled, robot stopped")
	return ctx.Err()
}

func (r *Runner) halt(ctx context.Context, msg string) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if err := r.ctrl.StopMove(stopCtx); err != nil {
		r.logger.Error("final stop failed", "error", err)
		return
	}
	r.logger.Warn(msg)
}

func (r *Runner) step(ctx context.Context, st Step) error {
	switch st.Action {
	case ActionMove:
		return r.ctrl.ContinuousMove(ctx, st.Args[0], st.Args[1], st.Args[2])
	case ActionStop:
		return r.ctrl.ContinuousMove(ctx, 0, 0, 0)
	case ActionSit:
		return r.ctrl.Sit(ctx)
	case ActionStandUp:
		return r.ctrl.StandUp(ctx)
	case ActionHighStand:
		return r.ctrl.HighStand(ctx)
	case ActionLowStand:
		return r.ctrl.LowStand(ctx)
	case ActionDamp:
		return r.ctrl.Damp(ctx)
	case ActionWaveHand:
		return r.ctrl.WaveHand(ctx, len(st.Args) == 1 && st.Args[0] != 0)
	case ActionShakeHand:
		stage := -1
		if len(st.Args) == 1 {
			stage = int(st.Args[0])
		}
		return r.ctrl.ShakeHand(ctx, stage)
	case ActionCommand:
		if r.interp == nil {
			return fmt.Errorf("command step %q: no interpreter configured", st.Text)
		}
		_, ok, err := r.interp.Execute(ctx, st.Text)
		if err == nil && !ok {
			err = fmt.Errorf("command step %q: no phrase matched", st.Text)
		}
		return err
	default:
		return fmt.Errorf("%w %q", ErrUnknownAction, st.Action)
	}
}

func hold(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
