package loco

import "context"

// ZeroTorque releases all joints.
func (c *Client) ZeroTorque(ctx context.Context) error { return c.SetFsmID(ctx, FsmZeroTorque) }

// Damp puts all joints into damping mode.
func (c *Client) Damp(ctx context.Context) error { return c.SetFsmID(ctx, FsmDamp) }

// Start enters the main locomotion controller.
func (c *Client) Start(ctx context.Context) error { return c.SetFsmID(ctx, FsmStart) }

// Sit sits the robot down.
func (c *Client) Sit(ctx context.Context) error { return c.SetFsmID(ctx, FsmSit) }

// StandUp stands the robot up.
func (c *Client) StandUp(ctx context.Context) error { return c.SetFsmID(ctx, FsmStandUp) }

// Squat2StandUp stands up from a squat.
func (c *Client) Squat2StandUp(ctx context.Context) error { return c.SetFsmID(ctx, FsmSquat2StandUp) }

// StandUp2Squat squats down from standing.
func (c *Client) StandUp2Squat(ctx context.Context) error { return c.SetFsmID(ctx, FsmSquat2StandUp) }

// Lie2StandUp stands up from lying down.
func (c *Client) Lie2StandUp(ctx context.Context) error { return c.SetFsmID(ctx, FsmLie2StandUp) }

// HighStand raises the stand height to its maximum.
func (c *Client) HighStand(ctx context.Context) error {
	return c.SetStandHeight(ctx, StandHeightHigh)
}

// LowStand lowers the stand height to its minimum.
func (c *Client) LowStand(ctx context.Context) error {
	return c.SetStandHeight(ctx, StandHeightLow)
}

// BalanceStand selects a balance mode.
func (c *Client) BalanceStand(ctx context.Context, mode int) error {
	return c.SetBalanceMode(ctx, mode)
}

// Move commands a velocity for MoveDuration seconds.
func (c *Client) Move(ctx context.Context, vx, vy, vyaw float64) error {
	return c.SetVelocity(ctx, vx, vy, vyaw, MoveDuration)
}

// ContinuousMove commands a velocity that is held until replaced.
func (c *Client) ContinuousMove(ctx context.Context, vx, vy, vyaw float64) error {
	return c.SetVelocity(ctx, vx, vy, vyaw, ContinuousMoveDuration)
}

// SetMoveCmd is the scripted-sequence spelling of ContinuousMove.
func (c *Client) SetMoveCmd(ctx context.Context, x, y, yaw float64) error {
	return c.ContinuousMove(ctx, x, y, yaw)
}

// StopMove zeroes the commanded velocity.
func (c *Client) StopMove(ctx context.Context) error {
	return c.SetVelocity(ctx, 0, 0, 0, MoveDuration)
}

// WaveHand waves, optionally turning toward the audience.
func (c *Client) WaveHand(ctx context.Context, turn bool) error {
	if turn {
		return c.SetTaskID(ctx, TaskWaveHandTurn)
	}
	return c.SetTaskID(ctx, TaskWaveHand)
}

// ShakeHand runs a handshake stage. Stage 0 extends the hand, stage 1
// withdraws it, and any other value alternates starting with stage 0.
func (c *Client) ShakeHand(ctx context.Context, stage int) error {
	c.stateMu.Lock()
	var task int
	switch stage {
	case 0:
		task = TaskShakeHand
	case 1:
		task = TaskShakeRelease
	default:
		task = c.nextShakeTask
	}
	if task == TaskShakeHand {
		c.nextShakeTask = TaskShakeRelease
	} else {
		c.nextShakeTask = TaskShakeHand
	}
	c.stateMu.Unlock()

	return c.SetTaskID(ctx, task)
}
