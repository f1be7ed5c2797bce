// Package command maps freeform text and single keystrokes to G1 motion
// primitives.
//
// Voice transcripts are matched against an ordered phrase table: the text is
// lowercased and the first phrase contained in it wins. Keystrokes go through
// a fixed binding table with a fixed-width status label per key.
package command

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-g1/internal/config"
	"github.com/teslashibe/go-g1/pkg/loco"
)

// Speeds are the velocities used for movement commands.
type Speeds = config.Speeds

// DefaultSpeeds returns the built-in teleoperation speeds.
func DefaultSpeeds() Speeds {
	return config.Default().Speeds
}

// Input sources reported to observers.
const (
	SourceVoice    = "voice"
	SourceKeyboard = "keyboard"
)

// Action names.
const (
	ActionWalkForward  = "walk_forward"
	ActionWalkBackward = "walk_backward"
	ActionMoveLeft     = "move_left"
	ActionMoveRight    = "move_right"
	ActionTurnLeft     = "turn_left"
	ActionTurnRight    = "turn_right"
	ActionStop         = "stop"
	ActionSit          = "sit"
	ActionStandUp      = "stand_up"
	ActionHighStand    = "high_stand"
	ActionLowStand     = "low_stand"
	ActionZeroTorque   = "zero_torque"
	ActionDamp         = "damp"
	ActionWaveHand     = "wave_hand"
	ActionWaveTurn     = "wave_hand_turn"
	ActionShakeHand    = "shake_hand"
	ActionQuit         = "quit"
)

// Action is a resolved command.
type Action struct {
	Name    string
	Message string
}

// Notifier is called with an action just before it is sent to the robot.
type Notifier func(source string, a Action)

// Observer is called after an action completes.
type Observer func(source string, a Action, err error)

// Interpreter dispatches text and key commands to a loco.Controller.
// It holds no mutable state and is safe for concurrent use when the
// controller is.
type Interpreter struct {
	ctrl     loco.Controller
	speeds   Speeds
	phrases  []Phrase
	bindings []Binding
	notify   Notifier
	observe  Observer
	logger   *slog.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithNotifier sets a callback run before each robot command.
func WithNotifier(n Notifier) Option {
	return func(i *Interpreter) { i.notify = n }
}

// WithObserver sets a callback run after each robot command.
func WithObserver(o Observer) Option {
	return func(i *Interpreter) { i.observe = o }
}

// WithLogger sets the interpreter logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Interpreter) { i.logger = l }
}

// NewInterpreter creates an interpreter driving ctrl.
func NewInterpreter(ctrl loco.Controller, speeds Speeds, opts ...Option) *Interpreter {
	i := &Interpreter{
		ctrl:     ctrl,
		speeds:   speeds,
		phrases:  phraseTable(),
		bindings: bindingTable(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	i.logger = i.logger.With("component", "command")
	return i
}

// Speeds returns the interpreter's speeds.
func (i *Interpreter) Speeds() Speeds {
	return i.speeds
}

// Match returns the action a transcript would trigger without running it.
func (i *Interpreter) Match(text string) (Action, bool) {
	p, ok := i.match(text)
	if !ok {
		return Action{}, false
	}
	return p.Action, true
}

func (i *Interpreter) match(text string) (Phrase, bool) {
	text = strings.ToLower(text)
	for _, p := range i.phrases {
		for _, trigger := range p.Triggers {
			if strings.Contains(text, trigger) {
				return p, true
			}
		}
	}
	return Phrase{}, false
}

// Execute runs the first phrase contained in text.
// Unmatched text returns ok=false and sends nothing.
func (i *Interpreter) Execute(ctx context.Context, text string) (Action, bool, error) {
	p, ok := i.match(text)
	if !ok {
		i.logger.Debug("no command matched", "text", text)
		return Action{}, false, nil
	}
	err := i.run(ctx, SourceVoice, p.Action, p.op)
	return p.Action, true, err
}

func (i *Interpreter) run(ctx context.Context, source string, a Action, o op) error {
	if i.notify != nil {
		i.notify(source, a)
	}
	err := o.do(ctx, i)
	if err == nil && o.settle {
		err = sleep(ctx, i.speeds.SettleDelay)
	}
	if i.observe != nil {
		i.observe(source, a, err)
	}
	if err != nil {
		i.logger.Warn("command failed", "source", source, "action", a.Name, "error", err)
		return err
	}
	i.logger.Debug("command sent", "source", source, "action", a.Name)
	return nil
}

// op is one robot invocation plus whether the posture settle delay follows.
type op struct {
	do     func(ctx context.Context, i *Interpreter) error
	settle bool
}

func move(fwd, lat, rot float64) op {
	return op{do: func(ctx context.Context, i *Interpreter) error {
		s := i.speeds
		return i.ctrl.Move(ctx, fwd*s.Forward, lat*s.Lateral, rot*s.Rotation)
	}}
}

var (
	opStop = op{do: func(ctx context.Context, i *Interpreter) error {
		return i.ctrl.Move(ctx, 0, 0, 0)
	}}
	opSit = op{settle: true, do: func(ctx context.Context, i *Interpreter) error {
		return i.ctrl.Sit(ctx)
	}}
	opStandUp = op{do: func(ctx context.Context, i *Interpreter) error {
		return i.ctrl.StandUp(ctx)
	}}
	opHighStand = op{settle: true, do: func(ctx context.Context, i *Interpreter) error {
		return i.ctrl.HighStand(ctx)
	}}
	opLowStand = op{settle: true, do: func(ctx context.Context, i *Interpreter) error {
		return i.ctrl.LowStand(ctx)
	}}
	opZeroTorque = op{do: func(ctx context.Context, i *Interpreter) error {
		return i.ctrl.ZeroTorque(ctx)
	}}
	opDamp = op{do: func(ctx context.Context, i *Interpreter) error {
		return i.ctrl.Damp(ctx)
	}}
	opWave = op{do: func(ctx context.Context, i *Interpreter) error {
		return i.ctrl.WaveHand(ctx, false)
	}}
	opWaveTurn = op{do: func(ctx context.Context, i *Interpreter) error {
		return i.ctrl.WaveHand(ctx, true)
	}}
	opShake = op{do: func(ctx context.Context, i *Interpreter) error {
		return i.ctrl.ShakeHand(ctx, -1)
	}}
)

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
