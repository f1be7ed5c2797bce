package loco

import "math"

// Service identity of the G1 locomotion service.
const (
	ServiceName    = "loco"
	ServiceVersion = "1.0.0.0"
)

// API IDs of the loco service.
const (
	APIGetFsmID       int32 = 7001
	APIGetFsmMode     int32 = 7002
	APIGetBalanceMode int32 = 7003
	APIGetSwingHeight int32 = 7004
	APIGetStandHeight int32 = 7005
	APIGetPhase       int32 = 7006

	APISetFsmID       int32 = 7101
	APISetBalanceMode int32 = 7102
	APISetSwingHeight int32 = 7103
	APISetStandHeight int32 = 7104
	APISetVelocity    int32 = 7105
	APISetArmTask     int32 = 7106
)

// APIs lists every API the client registers in Init.
var APIs = []int32{
	APIGetFsmID, APIGetFsmMode, APIGetBalanceMode, APIGetSwingHeight, APIGetStandHeight, APIGetPhase,
	APISetFsmID, APISetBalanceMode, APISetSwingHeight, APISetStandHeight, APISetVelocity, APISetArmTask,
}

// FSM IDs accepted by SetFsmID.
const (
	FsmZeroTorque    = 0
	FsmDamp          = 1
	FsmSquat         = 2
	FsmSit           = 3
	FsmStandUp       = 4
	FsmStart         = 200
	FsmLie2StandUp   = 702
	FsmSquat2StandUp = 706
)

// FsmName returns a readable name for an FSM ID.
func FsmName(id int) string {
	switch id {
	case FsmZeroTorque:
		return "zero_torque"
	case FsmDamp:
		return "damp"
	case FsmSquat:
		return "squat"
	case FsmSit:
		return "sit"
	case FsmStandUp:
		return "stand_up"
	case FsmStart:
		return "start"
	case FsmLie2StandUp:
		return "lie_to_stand"
	case FsmSquat2StandUp:
		return "squat_to_stand"
	default:
		return "unknown"
	}
}

// Arm task IDs accepted by SetTaskID.
const (
	TaskWaveHand     = 0
	TaskWaveHandTurn = 1
	TaskShakeHand    = 2 // first stage: extend hand
	TaskShakeRelease = 3 // second stage: withdraw hand
)

// Stand heights used by HighStand and LowStand.
const (
	StandHeightHigh = float64(math.MaxUint32)
	StandHeightLow  = 0
)

// Velocity command durations in seconds.
const (
	MoveDuration           = 1.0
	ContinuousMoveDuration = 864000.0
)
