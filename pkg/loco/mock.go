package loco

import (
	"context"
	"fmt"
	"sync"
)

// Call is one recorded invocation on a Mock.
type Call struct {
	Method string
	Args   []float64
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Method, c.Args)
}

// Mock is a SequenceController that records calls instead of moving a robot.
type Mock struct {
	mu    sync.Mutex
	calls []Call
	errs  map[string]error
}

// NewMock creates an empty mock.
func NewMock() *Mock {
	return &Mock{errs: make(map[string]error)}
}

// FailOn makes method return err until cleared with a nil err.
func (m *Mock) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, method)
		return
	}
	m.errs[method] = err
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Last returns the most recent call.
func (m *Mock) Last() (Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return Call{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *Mock) record(ctx context.Context, method string, args ...float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
	return m.errs[method]
}

func boolArg(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (m *Mock) Move(ctx context.Context, vx, vy, vyaw float64) error {
	return m.record(ctx, "Move", vx, vy, vyaw)
}

func (m *Mock) ContinuousMove(ctx context.Context, vx, vy, vyaw float64) error {
	return m.record(ctx, "ContinuousMove", vx, vy, vyaw)
}

func (m *Mock) StopMove(ctx context.Context) error   { return m.record(ctx, "StopMove") }
func (m *Mock) Sit(ctx context.Context) error        { return m.record(ctx, "Sit") }
func (m *Mock) StandUp(ctx context.Context) error    { return m.record(ctx, "StandUp") }
func (m *Mock) HighStand(ctx context.Context) error  { return m.record(ctx, "HighStand") }
func (m *Mock) LowStand(ctx context.Context) error   { return m.record(ctx, "LowStand") }
func (m *Mock) ZeroTorque(ctx context.Context) error { return m.record(ctx, "ZeroTorque") }
func (m *Mock) Damp(ctx context.Context) error       { return m.record(ctx, "Damp") }

func (m *Mock) WaveHand(ctx context.Context, turn bool) error {
	return m.record(ctx, "WaveHand", boolArg(turn))
}

func (m *Mock) ShakeHand(ctx context.Context, stage int) error {
	return m.record(ctx, "ShakeHand", float64(stage))
}

var _ SequenceController = (*Mock)(nil)
