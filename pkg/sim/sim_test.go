package sim

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-g1/pkg/channel"
	"github.com/teslashibe/go-g1/pkg/loco"
)

func newClient(t *testing.T, r *Robot) *loco.Client {
	t.Helper()
	c := loco.New(channel.NewMemoryTransport(r.Handle))
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return c
}

func request(t *testing.T, apiID int32, param string) channel.Request {
	t.Helper()
	req, err := channel.NewRequest(apiID, param)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestRobot_InitialState(t *testing.T) {
	st := NewRobot().Snapshot()
	if st.FsmID != loco.FsmDamp || st.Fsm != "damp" {
		t.Errorf("fsm: %d %s", st.FsmID, st.Fsm)
	}
	if st.ArmTask != NoTask || st.FsmMode != ModeStill || st.Velocity != [3]float64{} {
		t.Errorf("state: %+v", st)
	}
}

func TestRobot_LocoClient(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRobot(WithClock(func() time.Time { return now }))
	c := newClient(t, r)
	ctx := context.Background()

	if err := c.StandUp(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.HighStand(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.WaveHand(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := c.ContinuousMove(ctx, 0.3, 0, 0.6); err != nil {
		t.Fatal(err)
	}

	st := r.Snapshot()
	if st.FsmID != loco.FsmStandUp || st.StandHeight != loco.StandHeightHigh || st.ArmTask != loco.TaskWaveHandTurn {
		t.Errorf("state: %+v", st)
	}
	if st.Velocity != [3]float64{0.3, 0, 0.6} || st.FsmMode != ModeWalking {
		t.Errorf("velocity: %+v mode %d", st.Velocity, st.FsmMode)
	}

	if id, err := c.FsmID(ctx); err != nil || id != loco.FsmStandUp {
		t.Errorf("FsmID: %d, %v", id, err)
	}
	if mode, err := c.FsmMode(ctx); err != nil || mode != ModeWalking {
		t.Errorf("FsmMode: %d, %v", mode, err)
	}
	if h, err := c.StandHeight(ctx); err != nil || h != loco.StandHeightHigh {
		t.Errorf("StandHeight: %v, %v", h, err)
	}
	if ph, err := c.Phase(ctx); err != nil || len(ph) != 2 {
		t.Errorf("Phase: %v, %v", ph, err)
	}

	// A one-second Move expires.
	if err := c.Move(ctx, 0.2, 0, 0); err != nil {
		t.Fatal(err)
	}
	now = now.Add(1500 * time.Millisecond)
	if st := r.Snapshot(); st.Velocity != [3]float64{} || st.FsmMode != ModeStill {
		t.Errorf("velocity after expiry: %+v", st.Velocity)
	}

	// Sitting drops any held velocity.
	if err := c.ContinuousMove(ctx, 0.3, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Sit(ctx); err != nil {
		t.Fatal(err)
	}
	if st := r.Snapshot(); st.FsmID != loco.FsmSit || st.Velocity != [3]float64{} {
		t.Errorf("after sit: %+v", st)
	}
	if st := r.Snapshot(); st.Requests < 10 {
		t.Errorf("requests: %d", st.Requests)
	}
}

func TestRobot_Rejections(t *testing.T) {
	r := NewRobot()
	tests := []struct {
		name    string
		service string
		api     int32
		param   string
		want    int32
	}{
		{"unknown fsm", loco.ServiceName, loco.APISetFsmID, `{"data":99}`, channel.StatusServerAPIParameter},
		{"missing data", loco.ServiceName, loco.APISetFsmID, `{}`, channel.StatusServerAPIParameter},
		{"not json", loco.ServiceName, loco.APISetStandHeight, `high`, channel.StatusServerAPIParameter},
		{"negative height", loco.ServiceName, loco.APISetSwingHeight, `{"data":-1}`, channel.StatusServerAPIParameter},
		{"no duration", loco.ServiceName, loco.APISetVelocity, `{"velocity":[0.1,0,0]}`, channel.StatusServerAPIParameter},
		{"no velocity", loco.ServiceName, loco.APISetVelocity, `{"duration":1}`, channel.StatusServerAPIParameter},
		{"bad task", loco.ServiceName, loco.APISetArmTask, `{"data":7}`, channel.StatusServerAPIParameter},
		{"unknown api", loco.ServiceName, 7999, ``, channel.StatusServerAPINotImpl},
		{"other service", "arm", loco.APIGetFsmID, ``, channel.StatusServerAPINotImpl},
		{"valid", loco.ServiceName, loco.APISetBalanceMode, `{"data":1}`, channel.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(t, tt.api, tt.param)
			resp := r.Handle(context.Background(), tt.service, req)
			if resp.Header.Status.Code != tt.want {
				t.Errorf("status %d, want %d", resp.Header.Status.Code, tt.want)
			}
			if resp.Header.Identity != req.Header.Identity {
				t.Errorf("identity not echoed: %+v", resp.Header.Identity)
			}
		})
	}
	if st := r.Snapshot(); st.FsmID != loco.FsmDamp || st.BalanceMode != 1 {
		t.Errorf("rejected calls changed state: %+v", st)
	}
}

func TestRobot_ClientSeesStatusError(t *testing.T) {
	c := newClient(t, NewRobot())
	err := c.SetFsmID(context.Background(), 99)
	if !channel.IsStatus(err, channel.StatusServerAPIParameter) {
		t.Errorf("got %v, want status 3204", err)
	}
}

func TestRobot_Subscribe(t *testing.T) {
	r := NewRobot()
	var got []State
	r.Subscribe(func(st State) { got = append(got, st) })
	c := newClient(t, r)
	ctx := context.Background()

	c.FsmID(ctx)
	c.StandUp(ctx)
	c.SetFsmID(ctx, 99)
	c.LowStand(ctx)

	if len(got) != 2 {
		t.Fatalf("notifications: %d, want 2", len(got))
	}
	if got[0].FsmID != loco.FsmStandUp || got[1].StandHeight != loco.StandHeightLow {
		t.Errorf("notifications: %+v", got)
	}
}

func TestRobot_HandleNATS(t *testing.T) {
	r := NewRobot()
	req := request(t, loco.APISetFsmID, `{"data":4}`)
	payload, _ := json.Marshal(req)

	data, ok := r.handleNATS(payload)
	if !ok {
		t.Fatal("expected reply")
	}
	var resp channel.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Header.Identity.ID != req.Header.Identity.ID || resp.Header.Status.Code != channel.StatusOK {
		t.Errorf("resp: %+v", resp)
	}
	if r.Snapshot().FsmID != loco.FsmStandUp {
		t.Error("state not applied")
	}

	req = request(t, loco.APISetFsmID, `{"data":3}`)
	req.Header.Policy.NoReply = true
	payload, _ = json.Marshal(req)
	if _, ok := r.handleNATS(payload); ok {
		t.Error("noreply request got a reply")
	}
	if r.Snapshot().FsmID != loco.FsmSit {
		t.Error("noreply request not applied")
	}

	if _, ok := r.handleNATS([]byte("{")); ok {
		t.Error("bad payload got a reply")
	}
}

func TestServer_Routes(t *testing.T) {
	srv := NewServer(NewRobot(), nil)
	app := srv.App()

	req := request(t, loco.APISetFsmID, `{"data":4}`)
	body, _ := json.Marshal(req)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"rpc", http.MethodPost, channel.Path(loco.ServiceName), string(body), http.StatusOK},
		{"unknown service", http.MethodPost, channel.Path("arm"), string(body), http.StatusNotFound},
		{"bad body", http.MethodPost, channel.Path(loco.ServiceName), "{", http.StatusBadRequest},
		{"state", http.MethodGet, "/api/state", "", http.StatusOK},
		{"ws without upgrade", http.MethodGet, "/ws", "", http.StatusUpgradeRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(r, -1)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				msg, _ := io.ReadAll(resp.Body)
				t.Errorf("status %d, want %d: %s", resp.StatusCode, tt.want, msg)
			}
		})
	}

	resp, _ := app.Test(httptestGet("/api/state"), -1)
	var st State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.FsmID != loco.FsmStandUp {
		t.Errorf("state after rpc: %+v", st)
	}
}

func httptestGet(path string) *http.Request {
	r, _ := http.NewRequest(http.MethodGet, path, nil)
	return r
}

// startServer serves a fresh robot on a loopback port.
func startServer(t *testing.T) (*Robot, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	r := NewRobot()
	srv := NewServer(r, nil)
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Shutdown() })

	addr := ln.Addr().String()
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/health")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server not ready: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return r, addr
}

func TestServer_HTTPTransport(t *testing.T) {
	r, addr := startServer(t)
	tr := channel.NewHTTPTransport("http://"+addr, nil)
	c := loco.New(tr)
	ctx := context.Background()
	if err := c.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.StandUp(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.ShakeHand(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if st := r.Snapshot(); st.FsmID != loco.FsmStandUp || st.ArmTask != loco.TaskShakeHand {
		t.Errorf("state: %+v", st)
	}

	_, err := tr.Call(ctx, "arm", request(t, loco.APIGetFsmID, ""))
	if !errors.Is(err, channel.ErrNoService) {
		t.Errorf("got %v, want ErrNoService", err)
	}
}

func TestServer_WebSocketTransport(t *testing.T) {
	r, addr := startServer(t)
	ctx := context.Background()
	tr, err := channel.DialWebSocket(ctx, "ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	c := loco.New(tr)
	defer c.Close()

	if err := c.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Move(ctx, 0.3, 0, 0); err != nil {
		t.Fatal(err)
	}
	if st := r.Snapshot(); st.Velocity != [3]float64{0.3, 0, 0} {
		t.Errorf("velocity: %+v", st.Velocity)
	}
	if err := c.SetTaskID(ctx, 9); !channel.IsStatus(err, channel.StatusServerAPIParameter) {
		t.Errorf("got %v, want status 3204", err)
	}
}

func TestServer_StateStream(t *testing.T) {
	r, addr := startServer(t)
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/state", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var st State
	if err := conn.ReadJSON(&st); err != nil {
		t.Fatal(err)
	}
	if st.FsmID != loco.FsmDamp {
		t.Errorf("initial state: %+v", st)
	}

	c := loco.New(channel.NewMemoryTransport(r.Handle))
	c.Init(context.Background())
	if err := c.StandUp(context.Background()); err != nil {
		t.Fatal(err)
	}
	for st.FsmID != loco.FsmStandUp {
		if err := conn.ReadJSON(&st); err != nil {
			t.Fatalf("waiting for stand_up: %v", err)
		}
	}
}
