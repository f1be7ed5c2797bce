// Package loco provides a client for the Unitree G1 locomotion service.
//
// The package follows the same small-interface layout as the rest of go-g1:
// consumers depend on Mover, PostureController or GestureController and only
// the application wiring sees the concrete *Client.
package loco

import "context"

// Mover provides planar velocity control.
// Move commands last MoveDuration seconds on the robot unless repeated.
type Mover interface {
	Move(ctx context.Context, vx, vy, vyaw float64) error
	StopMove(ctx context.Context) error
}

// ContinuousMover holds a velocity until the next command.
// Used by scripted sequences that time their own steps.
type ContinuousMover interface {
	ContinuousMove(ctx context.Context, vx, vy, vyaw float64) error
}

// PostureController switches the robot between postures.
type PostureController interface {
	Sit(ctx context.Context) error
	StandUp(ctx context.Context) error
	HighStand(ctx context.Context) error
	LowStand(ctx context.Context) error
	ZeroTorque(ctx context.Context) error
	Damp(ctx context.Context) error
}

// GestureController triggers arm tasks.
type GestureController interface {
	WaveHand(ctx context.Context, turn bool) error
	ShakeHand(ctx context.Context, stage int) error
}

// Controller is the composite interface used by the command interpreter.
type Controller interface {
	Mover
	PostureController
	GestureController
}

// SequenceController is what scripted sequences need.
type SequenceController interface {
	Controller
	ContinuousMover
}

var (
	_ Controller         = (*Client)(nil)
	_ SequenceController = (*Client)(nil)
)
