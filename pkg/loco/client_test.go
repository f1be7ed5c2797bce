package loco

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-g1/pkg/channel"
)

// recorder is a fake loco service that records every request.
type recorder struct {
	mu       sync.Mutex
	requests []channel.Request
	services []string
	status   int32
	data     map[int32]string
	delay    time.Duration
}

func newRecorder() *recorder {
	return &recorder{data: map[int32]string{APIGetFsmID: `{"data":4}`}}
}

func (r *recorder) handle(ctx context.Context, service string, req channel.Request) channel.Response {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	r.services = append(r.services, service)
	return req.Reply(r.status, r.data[req.Header.Identity.APIID])
}

func (r *recorder) last() channel.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		return channel.Request{}
	}
	return r.requests[len(r.requests)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func newTestClient(t *testing.T, r *recorder, opts ...Option) *Client {
	t.Helper()
	c := New(channel.NewMemoryTransport(r.handle), opts...)
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return c
}

func TestClient_CallBeforeInit(t *testing.T) {
	r := newRecorder()
	c := New(channel.NewMemoryTransport(r.handle))

	err := c.StandUp(context.Background())
	if !channel.IsStatus(err, channel.StatusClientAPINotReg) {
		t.Errorf("got %v, want api-not-registered status", err)
	}
	if r.count() != 0 {
		t.Errorf("request sent before Init: %d", r.count())
	}
}

func TestClient_InitProbesFsm(t *testing.T) {
	r := newRecorder()
	newTestClient(t, r)

	last := r.last()
	if last.Header.Identity.APIID != APIGetFsmID {
		t.Errorf("probe api: got %d, want %d", last.Header.Identity.APIID, APIGetFsmID)
	}
	if r.services[0] != ServiceName {
		t.Errorf("service: got %q, want %q", r.services[0], ServiceName)
	}
}

func TestClient_InitFailure(t *testing.T) {
	r := newRecorder()
	r.status = channel.StatusServerInternal
	c := New(channel.NewMemoryTransport(r.handle))

	err := c.Init(context.Background())
	if !channel.IsStatus(err, channel.StatusServerInternal) {
		t.Errorf("got %v, want server internal status", err)
	}
}

func TestClient_Postures(t *testing.T) {
	tests := []struct {
		name string
		call func(*Client, context.Context) error
		fsm  int
	}{
		{"ZeroTorque", (*Client).ZeroTorque, FsmZeroTorque},
		{"Damp", (*Client).Damp, FsmDamp},
		{"Start", (*Client).Start, FsmStart},
		{"Sit", (*Client).Sit, FsmSit},
		{"StandUp", (*Client).StandUp, FsmStandUp},
		{"Squat2StandUp", (*Client).Squat2StandUp, FsmSquat2StandUp},
		{"StandUp2Squat", (*Client).StandUp2Squat, FsmSquat2StandUp},
		{"Lie2StandUp", (*Client).Lie2StandUp, FsmLie2StandUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecorder()
			c := newTestClient(t, r)
			if err := tt.call(c, context.Background()); err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			last := r.last()
			if last.Header.Identity.APIID != APISetFsmID {
				t.Errorf("api: got %d, want %d", last.Header.Identity.APIID, APISetFsmID)
			}
			var p intData
			json.Unmarshal([]byte(last.Parameter), &p)
			if p.Data != tt.fsm {
				t.Errorf("fsm: got %d, want %d", p.Data, tt.fsm)
			}
		})
	}
}

func TestClient_StandHeights(t *testing.T) {
	r := newRecorder()
	c := newTestClient(t, r)

	c.HighStand(context.Background())
	if got := r.last().Parameter; got != `{"data":4294967295}` {
		t.Errorf("HighStand param: got %s", got)
	}
	c.LowStand(context.Background())
	if got := r.last().Parameter; got != `{"data":0}` {
		t.Errorf("LowStand param: got %s", got)
	}
	if r.last().Header.Identity.APIID != APISetStandHeight {
		t.Errorf("api: got %d", r.last().Header.Identity.APIID)
	}
}

func TestClient_MoveDurations(t *testing.T) {
	r := newRecorder()
	c := newTestClient(t, r)

	tests := []struct {
		name     string
		call     func() error
		velocity [3]float64
		duration float64
	}{
		{"Move", func() error { return c.Move(context.Background(), 0.3, 0, 0) }, [3]float64{0.3, 0, 0}, MoveDuration},
		{"ContinuousMove", func() error { return c.ContinuousMove(context.Background(), 0, 0.2, 0) }, [3]float64{0, 0.2, 0}, ContinuousMoveDuration},
		{"SetMoveCmd", func() error { return c.SetMoveCmd(context.Background(), 0, 0, 0.3) }, [3]float64{0, 0, 0.3}, ContinuousMoveDuration},
		{"StopMove", func() error { return c.StopMove(context.Background()) }, [3]float64{}, MoveDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			last := r.last()
			if last.Header.Identity.APIID != APISetVelocity {
				t.Errorf("api: got %d", last.Header.Identity.APIID)
			}
			var p velocityParam
			if err := json.Unmarshal([]byte(last.Parameter), &p); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if p.Velocity != tt.velocity {
				t.Errorf("velocity: got %v, want %v", p.Velocity, tt.velocity)
			}
			if p.Duration != tt.duration {
				t.Errorf("duration: got %v, want %v", p.Duration, tt.duration)
			}
		})
	}
}

func taskOf(t *testing.T, req channel.Request) int {
	t.Helper()
	if req.Header.Identity.APIID != APISetArmTask {
		t.Fatalf("api: got %d, want %d", req.Header.Identity.APIID, APISetArmTask)
	}
	var p intData
	json.Unmarshal([]byte(req.Parameter), &p)
	return p.Data
}

func TestClient_WaveHand(t *testing.T) {
	r := newRecorder()
	c := newTestClient(t, r)

	c.WaveHand(context.Background(), false)
	if got := taskOf(t, r.last()); got != TaskWaveHand {
		t.Errorf("wave: got task %d", got)
	}
	c.WaveHand(context.Background(), true)
	if got := taskOf(t, r.last()); got != TaskWaveHandTurn {
		t.Errorf("wave+turn: got task %d", got)
	}
}

func TestClient_ShakeHandToggles(t *testing.T) {
	r := newRecorder()
	c := newTestClient(t, r)
	ctx := context.Background()

	want := []int{TaskShakeHand, TaskShakeRelease, TaskShakeHand}
	for i, w := range want {
		c.ShakeHand(ctx, -1)
		if got := taskOf(t, r.last()); got != w {
			t.Errorf("toggle %d: got task %d, want %d", i, got, w)
		}
	}

	// Explicit stages reset the toggle.
	c.ShakeHand(ctx, 1)
	if got := taskOf(t, r.last()); got != TaskShakeRelease {
		t.Errorf("stage 1: got %d", got)
	}
	c.ShakeHand(ctx, -1)
	if got := taskOf(t, r.last()); got != TaskShakeHand {
		t.Errorf("toggle after stage 1: got %d", got)
	}
	c.ShakeHand(ctx, 0)
	c.ShakeHand(ctx, -1)
	if got := taskOf(t, r.last()); got != TaskShakeRelease {
		t.Errorf("toggle after stage 0: got %d", got)
	}
}

func TestClient_Getters(t *testing.T) {
	r := newRecorder()
	r.data[APIGetStandHeight] = `{"data":0.75}`
	r.data[APIGetPhase] = `{"data":[0.1,0.6]}`
	r.data[APIGetBalanceMode] = `{"data":1}`
	c := newTestClient(t, r)
	ctx := context.Background()

	fsm, err := c.FsmID(ctx)
	if err != nil || fsm != FsmStandUp {
		t.Errorf("FsmID: got %d, %v", fsm, err)
	}
	h, err := c.StandHeight(ctx)
	if err != nil || h != 0.75 {
		t.Errorf("StandHeight: got %v, %v", h, err)
	}
	phase, err := c.Phase(ctx)
	if err != nil || len(phase) != 2 || phase[1] != 0.6 {
		t.Errorf("Phase: got %v, %v", phase, err)
	}
	mode, err := c.BalanceMode(ctx)
	if err != nil || mode != 1 {
		t.Errorf("BalanceMode: got %d, %v", mode, err)
	}
}

func TestClient_GetterDecodeError(t *testing.T) {
	r := newRecorder()
	c := newTestClient(t, r)
	r.mu.Lock()
	r.data[APIGetFsmMode] = `not json`
	r.mu.Unlock()

	if _, err := c.FsmMode(context.Background()); err == nil {
		t.Error("expected decode error")
	}
}

func TestClient_StatusError(t *testing.T) {
	r := newRecorder()
	c := newTestClient(t, r)
	r.mu.Lock()
	r.status = channel.StatusServerAPIParameter
	r.mu.Unlock()

	err := c.Move(context.Background(), 9, 9, 9)
	if !channel.IsStatus(err, channel.StatusServerAPIParameter) {
		t.Errorf("got %v, want parameter status", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	r := newRecorder()
	c := newTestClient(t, r)
	c.SetTimeout(10 * time.Millisecond)
	r.mu.Lock()
	r.delay = 200 * time.Millisecond
	r.mu.Unlock()

	start := time.Now()
	// MemoryTransport checks the context before dispatch; the handler
	// honours it while delaying, so the call ends near the timeout.
	c.StopMove(context.Background())
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("call took %v, timeout not applied", elapsed)
	}
	if c.Timeout() != 10*time.Millisecond {
		t.Errorf("Timeout: got %v", c.Timeout())
	}
}

func TestClient_SetTimeoutIgnoresNonPositive(t *testing.T) {
	c := New(channel.NewMemoryTransport(newRecorder().handle))
	c.SetTimeout(0)
	if c.Timeout() != DefaultTimeout {
		t.Errorf("Timeout: got %v, want default", c.Timeout())
	}
}

func TestClient_IdentityMismatch(t *testing.T) {
	tr := channel.NewMemoryTransport(func(_ context.Context, _ string, req channel.Request) channel.Response {
		resp := req.Reply(channel.StatusOK, `{"data":4}`)
		if req.Header.Identity.APIID != APIGetFsmID {
			resp.Header.Identity.ID = "someone-else"
		}
		return resp
	})
	c := New(tr)
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := c.Sit(context.Background()); !errors.Is(err, ErrIdentityMismatch) {
		t.Errorf("got %v, want ErrIdentityMismatch", err)
	}
}

func TestClient_Observer(t *testing.T) {
	var mu sync.Mutex
	var apis []int32
	r := newRecorder()
	c := newTestClient(t, r, WithObserver(func(api int32, _ time.Duration, _ error) {
		mu.Lock()
		apis = append(apis, api)
		mu.Unlock()
	}))
	c.Damp(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(apis) != 2 || apis[0] != APIGetFsmID || apis[1] != APISetFsmID {
		t.Errorf("observed apis: %v", apis)
	}
}

func TestClient_ConcurrentUse(t *testing.T) {
	r := newRecorder()
	c := newTestClient(t, r)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				c.Move(context.Background(), 0.3, 0, 0)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				c.ShakeHand(context.Background(), -1)
			}
		}()
	}
	wg.Wait()

	// 1 probe + 400 commands.
	if got := r.count(); got != 401 {
		t.Errorf("requests: got %d, want 401", got)
	}
}

func TestFsmName(t *testing.T) {
	if FsmName(FsmSit) != "sit" || FsmName(12345) != "unknown" {
		t.Error("unexpected FSM names")
	}
}
