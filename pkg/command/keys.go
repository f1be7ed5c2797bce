package command

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// KeyEsc quits the keyboard loop.
const KeyEsc rune = 0x1b

// Fixed-width status labels shown on the status line.
const (
	StatusReady         = "Robot Ready"
	StatusStopped       = "Stopped          "
	StatusStandUpFailed = "Stand Up Failed   "
	StatusMoveFailed    = "Move Failed       "
)

// Help groups, in display order.
const (
	GroupMovement = "Keyboard Controls"
	GroupPosture  = "Posture Commands"
	GroupGesture  = "Gesture Commands"
	GroupOther    = "Other Commands"
)

// Binding maps one key to an action.
type Binding struct {
	Key        rune
	Label      string
	Group      string
	Status     string
	FailStatus string
	Action     Action
	op         op
}

// KeyResult is the outcome of one keystroke. Fatal is set when a movement
// command failed and the session should end with a final stop.
type KeyResult struct {
	Status string
	Action Action
	Quit   bool
	Fatal  bool
}

func bindingTable() []Binding {
	return []Binding{
		{'w', "Move Forward", GroupMovement, "Moving Forward    ", "", Action{ActionWalkForward, ""}, move(1, 0, 0)},
		{'s', "Move Backward", GroupMovement, "Moving Backward   ", "", Action{ActionWalkBackward, ""}, move(-1, 0, 0)},
		{'a', "Move Left", GroupMovement, "Moving Left       ", "", Action{ActionMoveLeft, ""}, move(0, 1, 0)},
		{'d', "Move Right", GroupMovement, "Moving Right      ", "", Action{ActionMoveRight, ""}, move(0, -1, 0)},
		{'q', "Rotate Left", GroupMovement, "Rotating Left     ", "", Action{ActionTurnLeft, ""}, move(0, 0, 1)},
		{'e', "Rotate Right", GroupMovement, "Rotating Right    ", "", Action{ActionTurnRight, ""}, move(0, 0, -1)},

		{'f', "Stand Up", GroupPosture, "Standing Up       ", StatusStandUpFailed, Action{ActionStandUp, "Standing up..."}, opStandUp},
		{'g', "Sit Down", GroupPosture, "Sitting Down      ", "", Action{ActionSit, "Sitting down..."}, opSit},
		{'h', "High Stand", GroupPosture, "High Stand        ", "", Action{ActionHighStand, "Switching to high stand..."}, opHighStand},
		{'l', "Low Stand", GroupPosture, "Low Stand         ", "", Action{ActionLowStand, "Switching to low stand..."}, opLowStand},
		{'z', "Zero Torque", GroupPosture, "Zero Torque       ", "", Action{ActionZeroTorque, "Switching to zero torque..."}, opZeroTorque},

		{'v', "Wave Hand", GroupGesture, "Waving Hand       ", "", Action{ActionWaveHand, "Waving hand..."}, opWave},
		{'b', "Wave Hand with Turn", GroupGesture, "Waving With Turn  ", "", Action{ActionWaveTurn, "Waving hand with turn..."}, opWaveTurn},
		{'n', "Shake Hand", GroupGesture, "Shaking Hand      ", "", Action{ActionShakeHand, "Shaking hand..."}, opShake},

		{' ', "Stop/Damp", GroupOther, "Damped            ", "", Action{ActionDamp, "Damping motors..."}, opDamp},
	}
}

// Bindings returns the key bindings in help order.
func (i *Interpreter) Bindings() []Binding {
	out := make([]Binding, len(i.bindings))
	for n, b := range i.bindings {
		b.op = op{}
		out[n] = b
	}
	return out
}

func (i *Interpreter) binding(key rune) (Binding, bool) {
	for _, b := range i.bindings {
		if b.Key == key {
			return b, true
		}
	}
	return Binding{}, false
}

// HandleKey runs the action bound to key. Keys are case-insensitive.
// Unbound keys report StatusStopped and send nothing; Esc sets Quit.
// A failed posture or gesture returns its error with a failure status so
// callers can report it and keep reading keys. A failed movement also sets
// Fatal.
func (i *Interpreter) HandleKey(ctx context.Context, key rune) (KeyResult, error) {
	key = unicode.ToLower(key)
	if key == KeyEsc {
		return KeyResult{Action: Action{ActionQuit, "Exiting..."}, Quit: true}, nil
	}

	b, ok := i.binding(key)
	if !ok {
		return KeyResult{Status: StatusStopped}, nil
	}

	res := KeyResult{Status: b.Status, Action: b.Action}
	if err := i.run(ctx, SourceKeyboard, b.Action, b.op); err != nil {
		switch {
		case b.FailStatus != "":
			res.Status = b.FailStatus
		case b.Group == GroupMovement:
			res.Status = StatusMoveFailed
			res.Fatal = true
		default:
			res.Status = StatusStopped
		}
		return res, fmt.Errorf("%s: %w", strings.ToLower(b.Label), err)
	}
	return res, nil
}

// ControlsHelp returns the controls screen printed at startup.
func (i *Interpreter) ControlsHelp() string {
	var sb strings.Builder
	sb.WriteString("\nUnitree G1 Robot Controls:\n")
	sb.WriteString("-------------------------\n")

	group := func(name string) {
		for _, b := range i.bindings {
			if b.Group != name {
				continue
			}
			fmt.Fprintf(&sb, "  %s: %s\n", keyName(b.Key), b.Label)
		}
	}

	sb.WriteString(GroupMovement + ":\n")
	group(GroupMovement)
	sb.WriteString("\n" + GroupPosture + ":\n")
	group(GroupPosture)
	sb.WriteString("\n" + GroupGesture + ":\n")
	group(GroupGesture)

	sb.WriteString("\nVoice Commands:\n")
	for _, p := range i.phrases {
		quoted := make([]string, len(p.Triggers))
		for n, t := range p.Triggers {
			quoted[n] = "'" + t + "'"
		}
		fmt.Fprintf(&sb, "  %s\n", strings.Join(quoted, " or "))
	}

	sb.WriteString("\n" + GroupOther + ":\n")
	group(GroupOther)
	sb.WriteString("  Esc: Quit\n")
	sb.WriteString("\nCurrent Status: " + StatusReady)
	return sb.String()
}

func keyName(r rune) string {
	switch r {
	case ' ':
		return "Space"
	case KeyEsc:
		return "Esc"
	default:
		return strings.ToUpper(string(r))
	}
}
