package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
)

// fakeConn records written frames. ReadMessage blocks until Close.
type fakeConn struct {
	mu      sync.Mutex
	written []string
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) Close() error                      { f.once.Do(func() { close(f.closed) }); return nil }
func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(mt int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mt == websocket.TextMessage {
		f.written = append(f.written, string(data))
	}
	return nil
}

func (f *fakeConn) frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_Broadcast(t *testing.T) {
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	a, b := newFakeConn(), newFakeConn()
	go h.Serve(a)
	go h.Serve(b)
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	if err := h.BroadcastJSON("state", map[string]int{"fsm_id": 4}); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*fakeConn{a, b} {
		waitFor(t, func() bool { return len(c.frames()) == 1 })
		if got := c.frames()[0]; got != `{"fsm_id":4}` {
			t.Errorf("frame: %s", got)
		}
	}

	a.Close()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	cancel()
	<-h.Done()
	if h.IsRunning() || h.ClientCount() != 0 {
		t.Error("hub still holds clients after stop")
	}
}

func TestHub_NewClientGetsLastMessage(t *testing.T) {
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	h.BroadcastJSON("state", 1)
	h.BroadcastJSON("state", 2)
	waitFor(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.last != nil && string(h.last.Data) == "2"
	})

	c := newFakeConn()
	go h.Serve(c)
	waitFor(t, func() bool { return len(c.frames()) == 1 })
	if got := c.frames()[0]; got != "2" {
		t.Errorf("first frame: %s", got)
	}
}

func TestHub_ServeAfterStop(t *testing.T) {
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	cancel()
	<-h.Done()

	c := newFakeConn()
	done := make(chan struct{})
	go func() { h.Serve(c); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve blocked on a stopped hub")
	}
}

func TestNewMessage_BadValue(t *testing.T) {
	if _, err := NewMessage("x", make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}
