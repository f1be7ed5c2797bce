package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// defaultNATSTimeout bounds requests whose context carries no deadline.
const defaultNATSTimeout = 10 * time.Second

// NATSTransport sends requests with NATS request/reply on rt.api.<service>.request.
type NATSTransport struct {
	conn   *nats.Conn
	closed atomic.Bool
}

// DialNATS connects to a NATS server. netDialer may be nil.
func DialNATS(url, name string, netDialer *net.Dialer) (*NATSTransport, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(5 * time.Second),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}
	if netDialer != nil {
		opts = append(opts, nats.SetCustomDialer(netDialer))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSTransport{conn: conn}, nil
}

// NewNATSTransportFromConn wraps an existing connection.
func NewNATSTransportFromConn(conn *nats.Conn) *NATSTransport {
	return &NATSTransport{conn: conn}
}

// Call publishes req and waits for one reply.
func (n *NATSTransport) Call(ctx context.Context, service string, req Request) (Response, error) {
	if n.closed.Load() {
		return Response{}, ErrClosed
	}

	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	subject := Subject(service)

	if req.Header.Policy.NoReply {
		if err := n.conn.Publish(subject, data); err != nil {
			return Response{}, fmt.Errorf("nats publish: %w", err)
		}
		return Response{}, nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultNATSTimeout)
		defer cancel()
	}

	msg, err := n.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return Response{}, fmt.Errorf("%w: %s", ErrNoService, subject)
		}
		return Response{}, ctxErr(ctx, fmt.Errorf("nats request: %w", err))
	}

	var resp Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Close drains and closes the connection.
func (n *NATSTransport) Close() error {
	if n.closed.Swap(true) {
		return nil
	}
	n.conn.Close()
	return nil
}
