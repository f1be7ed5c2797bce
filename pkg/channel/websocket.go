package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsWriteTimeout     = 5 * time.Second
	wsPingInterval     = 15 * time.Second
	wsReadTimeout      = 45 * time.Second
)

// WebSocketTransport multiplexes requests over one websocket connection.
// Requests are written as Envelopes; responses are matched by identity ID.
type WebSocketTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Response
	err     error

	done      chan struct{}
	closeOnce sync.Once
}

// DialWebSocket connects to a websocket service bridge.
func DialWebSocket(ctx context.Context, url string, netDialer *net.Dialer) (*WebSocketTransport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
	}
	if netDialer != nil {
		dialer.NetDialContext = netDialer.DialContext
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}

	t := &WebSocketTransport{
		conn:    conn,
		pending: make(map[string]chan Response),
		done:    make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	go t.readLoop()
	go t.keepAlive()

	return t, nil
}

func (t *WebSocketTransport) readLoop() {
	for {
		var resp Response
		if err := t.conn.ReadJSON(&resp); err != nil {
			t.fail(err)
			return
		}
		t.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		t.mu.Lock()
		ch, ok := t.pending[resp.Header.Identity.ID]
		delete(t.pending, resp.Header.Identity.ID)
		t.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

// keepAlive sends periodic pings to keep the connection alive.
func (t *WebSocketTransport) keepAlive() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
			t.writeMu.Unlock()
			if err != nil {
				t.fail(err)
				return
			}
		}
	}
}

// fail records the first fatal error and wakes all waiters.
func (t *WebSocketTransport) fail(err error) {
	t.mu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.mu.Unlock()
	t.closeOnce.Do(func() { close(t.done) })
}

// Call writes req and waits for the matching response.
func (t *WebSocketTransport) Call(ctx context.Context, service string, req Request) (Response, error) {
	select {
	case <-t.done:
		return Response{}, t.closedErr()
	default:
	}

	id := req.Header.Identity.ID
	ch := make(chan Response, 1)
	if !req.Header.Policy.NoReply {
		t.mu.Lock()
		t.pending[id] = ch
		t.mu.Unlock()
	}

	t.writeMu.Lock()
	t.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	err := t.conn.WriteJSON(Envelope{Service: service, Request: req})
	t.writeMu.Unlock()
	if err != nil {
		t.forget(id)
		return Response{}, fmt.Errorf("websocket write: %w", err)
	}

	if req.Header.Policy.NoReply {
		return Response{}, nil
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		t.forget(id)
		return Response{}, ctxErr(ctx, ctx.Err())
	case <-t.done:
		t.forget(id)
		return Response{}, t.closedErr()
	}
}

func (t *WebSocketTransport) forget(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

func (t *WebSocketTransport) closedErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil || errors.Is(t.err, ErrClosed) {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, t.err)
}

// Close sends a close frame and tears down the connection.
func (t *WebSocketTransport) Close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()

	t.fail(ErrClosed)
	return t.conn.Close()
}
