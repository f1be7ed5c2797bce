// Package sim provides a simulated G1 loco service for development and
// tests. It answers the same RPCs as the robot and keeps enough state to
// show what a client commanded.
package sim

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-g1/pkg/channel"
	"github.com/teslashibe/go-g1/pkg/loco"
)

// Gait modes reported by GetFsmMode.
const (
	ModeStill   = 0
	ModeWalking = 1
)

// NoTask is the arm task reported before any task has run.
const NoTask = -1

// State is a snapshot of the simulated robot.
type State struct {
	FsmID       int        `json:"fsm_id"`
	Fsm         string     `json:"fsm"`
	FsmMode     int        `json:"fsm_mode"`
	BalanceMode int        `json:"balance_mode"`
	SwingHeight float64    `json:"swing_height"`
	StandHeight float64    `json:"stand_height"`
	Velocity    [3]float64 `json:"velocity"`
	ArmTask     int        `json:"arm_task"`
	Requests    int64      `json:"requests"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Robot is the in-process loco service model. It is goroutine-safe.
type Robot struct {
	mu sync.Mutex

	fsmID       int
	balanceMode int
	swingHeight float64
	standHeight float64
	velocity    [3]float64
	velUntil    time.Time
	armTask     int
	requests    int64
	updatedAt   time.Time

	service   string
	now       func() time.Time
	listeners []func(State)
	logger    *slog.Logger
}

// RobotOption configures a Robot.
type RobotOption func(*Robot)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RobotOption {
	return func(r *Robot) { r.now = now }
}

// WithLogger sets the robot logger.
func WithLogger(l *slog.Logger) RobotOption {
	return func(r *Robot) { r.logger = l }
}

// NewRobot returns a robot lying damped, as after power-on.
func NewRobot(opts ...RobotOption) *Robot {
	r := &Robot{
		fsmID:       loco.FsmDamp,
		swingHeight: 0.08,
		standHeight: 0.75,
		armTask:     NoTask,
		service:     loco.ServiceName,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "sim")
	r.updatedAt = r.now()
	return r
}

// Service returns the service name the robot answers to.
func (r *Robot) Service() string { return r.service }

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs with no locks held.
func (r *Robot) Subscribe(fn func(State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Snapshot returns the current state.
func (r *Robot) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Robot) snapshotLocked() State {
	vel := r.currentVelocityLocked()
	mode := ModeStill
	if vel != [3]float64{} {
		mode = ModeWalking
	}
	return State{
		FsmID:       r.fsmID,
		Fsm:         loco.FsmName(r.fsmID),
		FsmMode:     mode,
		BalanceMode: r.balanceMode,
		SwingHeight: r.swingHeight,
		StandHeight: r.standHeight,
		Velocity:    vel,
		ArmTask:     r.armTask,
		Requests:    r.requests,
		UpdatedAt:   r.updatedAt,
	}
}

// currentVelocityLocked is the commanded velocity, or zero once its
// duration has elapsed.
func (r *Robot) currentVelocityLocked() [3]float64 {
	if r.now().After(r.velUntil) {
		return [3]float64{}
	}
	return r.velocity
}

// Handle answers one loco RPC. It satisfies channel.HandlerFunc.
func (r *Robot) Handle(ctx context.Context, service string, req channel.Request) channel.Response {
	if err := ctx.Err(); err != nil {
		return req.Reply(channel.StatusServerInternal, "")
	}
	if service != r.service {
		return req.Reply(channel.StatusServerAPINotImpl, "")
	}

	apiID := req.Header.Identity.APIID
	r.mu.Lock()
	r.requests++
	data, code, changed := r.dispatchLocked(apiID, req.Parameter)
	var snap State
	var listeners []func(State)
	if changed {
		r.updatedAt = r.now()
		snap = r.snapshotLocked()
		listeners = append(listeners, r.listeners...)
	}
	r.mu.Unlock()

	if code != channel.StatusOK {
		r.logger.Debug("rpc rejected", "api", apiID, "param", req.Parameter, "status", code)
	} else if changed {
		r.logger.Info("state changed", "api", apiID, "fsm", snap.Fsm, "velocity", snap.Velocity)
	}
	for _, fn := range listeners {
		fn(snap)
	}
	return req.Reply(code, data)
}

type intParam struct {
	Data *int `json:"data"`
}

type floatParam struct {
	Data *float64 `json:"data"`
}

type velocityParam struct {
	Velocity *[3]float64 `json:"velocity"`
	Duration float64     `json:"duration"`
}

func reply(v any) string {
	data, _ := json.Marshal(map[string]any{"data": v})
	return string(data)
}

// dispatchLocked applies one API call and reports the reply data, the
// status code and whether the state changed.
func (r *Robot) dispatchLocked(apiID int32, param string) (string, int32, bool) {
	switch apiID {
	case loco.APIGetFsmID:
		return reply(r.fsmID), channel.StatusOK, false
	case loco.APIGetFsmMode:
		mode := ModeStill
		if r.currentVelocityLocked() != [3]float64{} {
			mode = ModeWalking
		}
		return reply(mode), channel.StatusOK, false
	case loco.APIGetBalanceMode:
		return reply(r.balanceMode), channel.StatusOK, false
	case loco.APIGetSwingHeight:
		return reply(r.swingHeight), channel.StatusOK, false
	case loco.APIGetStandHeight:
		return reply(r.standHeight), channel.StatusOK, false
	case loco.APIGetPhase:
		phase := []float64{0, 0}
		if r.currentVelocityLocked() != [3]float64{} {
			t := float64(r.now().UnixMilli()%1000) / 1000
			phase = []float64{t, 1 - t}
		}
		return reply(phase), channel.StatusOK, false

	case loco.APISetFsmID:
		var p intParam
		if json.Unmarshal([]byte(param), &p) != nil || p.Data == nil || loco.FsmName(*p.Data) == "unknown" {
			return "", channel.StatusServerAPIParameter, false
		}
		r.fsmID = *p.Data
		switch r.fsmID {
		case loco.FsmZeroTorque, loco.FsmDamp, loco.FsmSit, loco.FsmSquat:
			r.velocity = [3]float64{}
			r.velUntil = time.Time{}
		}
		return "", channel.StatusOK, true

	case loco.APISetBalanceMode:
		var p intParam
		if json.Unmarshal([]byte(param), &p) != nil || p.Data == nil || *p.Data < 0 {
			return "", channel.StatusServerAPIParameter, false
		}
		r.balanceMode = *p.Data
		return "", channel.StatusOK, true

	case loco.APISetSwingHeight:
		var p floatParam
		if json.Unmarshal([]byte(param), &p) != nil || p.Data == nil || *p.Data < 0 {
			return "", channel.StatusServerAPIParameter, false
		}
		r.swingHeight = *p.Data
		return "", channel.StatusOK, true

	case loco.APISetStandHeight:
		var p floatParam
		if json.Unmarshal([]byte(param), &p) != nil || p.Data == nil || *p.Data < 0 {
			return "", channel.StatusServerAPIParameter, false
		}
		r.standHeight = *p.Data
		return "", channel.StatusOK, true

	case loco.APISetVelocity:
		var p velocityParam
		if json.Unmarshal([]byte(param), &p) != nil || p.Velocity == nil || p.Duration <= 0 {
			return "", channel.StatusServerAPIParameter, false
		}
		r.velocity = *p.Velocity
		r.velUntil = r.now().Add(time.Duration(p.Duration * float64(time.Second)))
		return "", channel.StatusOK, true

	case loco.APISetArmTask:
		var p intParam
		if json.Unmarshal([]byte(param), &p) != nil || p.Data == nil ||
			*p.Data < loco.TaskWaveHand || *p.Data > loco.TaskShakeRelease {
			return "", channel.StatusServerAPIParameter, false
		}
		r.armTask = *p.Data
		return "", channel.StatusOK, true
	}
	return "", channel.StatusServerAPINotImpl, false
}
