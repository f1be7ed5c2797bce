// Package sequence runs scripted motion sequences on a G1.
//
// A sequence is an ordered list of steps. Each step prints a line, sends one
// motion primitive and then holds for a fixed time before the next step.
// Sequences are built in (WalkDemo) or loaded from YAML:
//
//	name: walk-demo
//	start: Starting walking sequence...
//	steps:
//	  - say: Walking forward...
//	    action: move
//	    args: [0.2, 0, 0]
//	    hold: 3s
//	  - say: Sitting down...
//	    action: sit
//	    hold: 2s
//	done: Sequence complete!
package sequence

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Step actions.
const (
	ActionMove      = "move"
	ActionStop      = "stop"
	ActionSit       = "sit"
	ActionStandUp   = "stand_up"
	ActionHighStand = "high_stand"
	ActionLowStand  = "low_stand"
	ActionDamp      = "damp"
	ActionWaveHand  = "wave_hand"
	ActionShakeHand = "shake_hand"
	ActionCommand   = "command"
)

// argCounts is the number of args each action takes. -1 means 0 or 1.
var argCounts = map[string]int{
	ActionMove:      3,
	ActionStop:      0,
	ActionSit:       0,
	ActionStandUp:   0,
	ActionHighStand: 0,
	ActionLowStand:  0,
	ActionDamp:      0,
	ActionWaveHand:  -1,
	ActionShakeHand: -1,
	ActionCommand:   0,
}

var (
	ErrEmpty         = errors.New("sequence: no steps")
	ErrUnknownAction = errors.New("sequence: unknown action")
	ErrBadArgs       = errors.New("sequence: wrong number of args")
)

// Step is one scripted action.
type Step struct {
	Say    string        `yaml:"say"`
	Action string        `yaml:"action"`
	Args   []float64     `yaml:"args,omitempty"`
	Text   string        `yaml:"text,omitempty"`
	Hold   time.Duration `yaml:"hold"`
}

// Sequence is a named list of steps.
type Sequence struct {
	Name  string `yaml:"name"`
	Start string `yaml:"start,omitempty"`
	Steps []Step `yaml:"steps"`
	Done  string `yaml:"done,omitempty"`
}

// Duration is the sum of all hold times.
func (s Sequence) Duration() time.Duration {
	var d time.Duration
	for _, st := range s.Steps {
		d += st.Hold
	}
	return d
}

// Validate checks every step.
func (s Sequence) Validate() error {
	if len(s.Steps) == 0 {
		return ErrEmpty
	}
	for i, st := range s.Steps {
		want, ok := argCounts[st.Action]
		if !ok {
			return fmt.Errorf("step %d: %w %q", i+1, ErrUnknownAction, st.Action)
		}
		n := len(st.Args)
		if (want >= 0 && n != want) || (want < 0 && n > 1) {
			return fmt.Errorf("step %d (%s): %w: got %d", i+1, st.Action, ErrBadArgs, n)
		}
		if st.Action == ActionCommand && st.Text == "" {
			return fmt.Errorf("step %d: command step needs text", i+1)
		}
		if st.Hold < 0 {
			return fmt.Errorf("step %d: negative hold %v", i+1, st.Hold)
		}
	}
	return nil
}

// WalkDemo is the built-in demo: walk forward, turn, stop and sit.
func WalkDemo() Sequence {
	return Sequence{
		Name:  "walk-demo",
		Start: "Starting walking sequence...",
		Steps: []Step{
			{Say: "Walking forward...", Action: ActionMove, Args: []float64{0.2, 0, 0}, Hold: 3 * time.Second},
			{Say: "Turning left...", Action: ActionMove, Args: []float64{0, 0, 0.3}, Hold: 2 * time.Second},
			{Say: "Stopping...", Action: ActionStop, Hold: time.Second},
			{Say: "Sitting down...", Action: ActionSit, Hold: 2 * time.Second},
		},
		Done: "Sequence complete!",
	}
}

// Parse decodes and validates a YAML sequence.
func Parse(data []byte) (Sequence, error) {
	var s Sequence
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Sequence{}, fmt.Errorf("sequence: parse: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Sequence{}, err
	}
	return s, nil
}

// Load reads a YAML sequence file.
func Load(path string) (Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sequence{}, fmt.Errorf("sequence: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Sequence{}, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}
