// Package channel provides the RPC channel between go-g1 and the robot's
// onboard services.
//
// A Factory is initialized once per process with a DDS-style domain ID and
// the name of the network interface the robot is reachable through. It then
// dials transports to the loco service bridge:
//
//   - http://, https:// - one JSON POST per request
//   - ws://, wss://     - a single websocket multiplexing requests
//   - nats://           - NATS request/reply
//
// Every transport carries the same Request/Response envelopes, so services
// and clients never care which one is in use.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/teslashibe/go-g1/internal/httpc"
)

// Transport sends requests to a named service and waits for the response.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Call sends req to service and blocks until a response, ctx expiry,
	// or transport failure. Requests with Policy.NoReply return a zero
	// Response as soon as the request is sent.
	Call(ctx context.Context, service string, req Request) (Response, error)

	// Close releases the transport. Calls after Close return ErrClosed.
	Close() error
}

// HandlerFunc serves requests for in-process services.
type HandlerFunc func(ctx context.Context, service string, req Request) Response

// Factory creates transports bound to one network interface and domain.
type Factory struct {
	DomainID  int
	Interface string
	LocalAddr net.IP // first IPv4 address of Interface, nil for any

	logger *slog.Logger
}

// lookupInterface is replaced in tests.
var lookupInterface = net.InterfaceByName

// Init validates the domain and resolves the network interface.
// An empty interface name lets the OS choose the route.
func Init(domainID int, iface string) (*Factory, error) {
	if domainID < 0 {
		return nil, fmt.Errorf("channel: invalid domain id %d", domainID)
	}

	f := &Factory{
		DomainID:  domainID,
		Interface: iface,
		logger:    slog.Default().With("component", "channel"),
	}
	if iface == "" {
		return f, nil
	}

	ip, err := interfaceIPv4(iface)
	if err != nil {
		return nil, err
	}
	f.LocalAddr = ip

	f.logger.Info("channel initialized",
		"domain", domainID,
		"interface", iface,
		"local_addr", ip.String(),
	)
	return f, nil
}

func interfaceIPv4(name string) (net.IP, error) {
	ifi, err := lookupInterface(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInterfaceNotFound, name)
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, fmt.Errorf("channel: addresses of %s: %w", name, err)
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok {
			if v4 := ipnet.IP.To4(); v4 != nil {
				return v4, nil
			}
		}
	}
	return nil, fmt.Errorf("channel: interface %s has no IPv4 address", name)
}

// Dial opens a transport to endpoint, chosen by URL scheme.
func (f *Factory) Dial(ctx context.Context, endpoint string) (Transport, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("channel: parse endpoint: %w", err)
	}

	var t Transport
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		t = NewHTTPTransport(strings.TrimRight(endpoint, "/"), httpc.NewClient(0, f.LocalAddr))
	case "ws", "wss":
		if u.Path == "" || u.Path == "/" {
			u.Path = "/ws"
		}
		t, err = DialWebSocket(ctx, u.String(), httpc.Dialer(f.LocalAddr))
	case "nats", "tls":
		t, err = DialNATS(endpoint, "go-g1", httpc.Dialer(f.LocalAddr))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	f.logger.Debug("transport dialed", "endpoint", endpoint, "scheme", u.Scheme)
	return &domainTransport{Transport: t, domain: f.DomainID}, nil
}

// domainTransport stamps the factory's domain onto every request.
type domainTransport struct {
	Transport
	domain int
}

func (d *domainTransport) Call(ctx context.Context, service string, req Request) (Response, error) {
	req.Header.Domain = d.domain
	return d.Transport.Call(ctx, service, req)
}

// MemoryTransport calls an in-process handler directly.
type MemoryTransport struct {
	handler HandlerFunc
	closed  atomic.Bool
}

// NewMemoryTransport returns a transport that dispatches to handler.
func NewMemoryTransport(handler HandlerFunc) *MemoryTransport {
	return &MemoryTransport{handler: handler}
}

// Call invokes the handler synchronously.
func (m *MemoryTransport) Call(ctx context.Context, service string, req Request) (Response, error) {
	if m.closed.Load() {
		return Response{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Response{}, ctxErr(ctx, err)
	}
	resp := m.handler(ctx, service, req)
	if req.Header.Policy.NoReply {
		return Response{}, nil
	}
	return resp, nil
}

// Close marks the transport closed.
func (m *MemoryTransport) Close() error {
	m.closed.Store(true)
	return nil
}
