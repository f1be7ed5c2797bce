package loco

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-g1/pkg/channel"
)

// DefaultTimeout is the per-request timeout until SetTimeout is called.
const DefaultTimeout = 10 * time.Second

// ErrIdentityMismatch is returned when a response answers a different request.
var ErrIdentityMismatch = errors.New("loco: response identity mismatch")

// Observer is notified after every RPC, e.g. to record metrics.
type Observer func(apiID int32, elapsed time.Duration, err error)

// Client talks to the loco service over a channel.Transport.
// All RPCs are serialized, so a Client may be shared between goroutines.
type Client struct {
	transport channel.Transport
	service   string
	logger    *slog.Logger
	observer  Observer

	// mu serializes RPCs on the wire.
	mu sync.Mutex

	// stateMu guards client-side state.
	stateMu       sync.Mutex
	timeout       time.Duration
	registered    map[int32]bool
	nextShakeTask int
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithObserver sets a callback invoked after every RPC.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithService overrides the service name (default "loco").
func WithService(name string) Option {
	return func(c *Client) { c.service = name }
}

// New creates a client. Call Init before issuing commands.
func New(t channel.Transport, opts ...Option) *Client {
	c := &Client{
		transport:     t,
		service:       ServiceName,
		timeout:       DefaultTimeout,
		registered:    make(map[int32]bool),
		nextShakeTask: TaskShakeHand,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "loco", "service", c.service)
	return c
}

// SetTimeout sets the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if d > 0 {
		c.timeout = d
	}
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.timeout
}

// Init registers the loco APIs and probes the service with GetFsmID.
func (c *Client) Init(ctx context.Context) error {
	c.stateMu.Lock()
	for _, api := range APIs {
		c.registered[api] = true
	}
	c.stateMu.Unlock()

	fsm, err := c.FsmID(ctx)
	if err != nil {
		return fmt.Errorf("loco init: %w", err)
	}
	c.logger.Info("loco client initialized",
		"version", ServiceVersion,
		"fsm_id", fsm,
		"fsm", FsmName(fsm),
	)
	return nil
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// call performs one RPC and returns the response data.
func (c *Client) call(ctx context.Context, apiID int32, parameter any) (string, error) {
	c.stateMu.Lock()
	registered := c.registered[apiID]
	timeout := c.timeout
	c.stateMu.Unlock()

	if !registered {
		return "", &channel.StatusError{APIID: apiID, Code: channel.StatusClientAPINotReg}
	}

	req, err := channel.NewRequest(apiID, parameter)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.mu.Lock()
	start := time.Now()
	resp, err := c.transport.Call(ctx, c.service, req)
	elapsed := time.Since(start)
	c.mu.Unlock()

	if err == nil {
		err = channel.CheckStatus(resp)
	}
	if err == nil && resp.Header.Identity.ID != req.Header.Identity.ID {
		err = fmt.Errorf("%w: sent %s, got %s", ErrIdentityMismatch, req.Header.Identity.ID, resp.Header.Identity.ID)
	}

	if c.observer != nil {
		c.observer(apiID, elapsed, err)
	}
	c.logger.Debug("rpc", "api", apiID, "param", req.Parameter, "elapsed", elapsed, "error", err)

	if err != nil {
		return "", fmt.Errorf("loco api %d: %w", apiID, err)
	}
	return resp.Data, nil
}

type intData struct {
	Data int `json:"data"`
}

type floatData struct {
	Data float64 `json:"data"`
}

type velocityParam struct {
	Velocity [3]float64 `json:"velocity"`
	Duration float64    `json:"duration"`
}

func (c *Client) getInt(ctx context.Context, apiID int32) (int, error) {
	data, err := c.call(ctx, apiID, nil)
	if err != nil {
		return 0, err
	}
	var v intData
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return 0, fmt.Errorf("loco api %d: decode %q: %w", apiID, data, err)
	}
	return v.Data, nil
}

func (c *Client) getFloat(ctx context.Context, apiID int32) (float64, error) {
	data, err := c.call(ctx, apiID, nil)
	if err != nil {
		return 0, err
	}
	var v floatData
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return 0, fmt.Errorf("loco api %d: decode %q: %w", apiID, data, err)
	}
	return v.Data, nil
}

// FsmID returns the current FSM ID.
func (c *Client) FsmID(ctx context.Context) (int, error) {
	return c.getInt(ctx, APIGetFsmID)
}

// FsmMode returns the current FSM mode.
func (c *Client) FsmMode(ctx context.Context) (int, error) {
	return c.getInt(ctx, APIGetFsmMode)
}

// BalanceMode returns the current balance mode.
func (c *Client) BalanceMode(ctx context.Context) (int, error) {
	return c.getInt(ctx, APIGetBalanceMode)
}

// SwingHeight returns the current swing height.
func (c *Client) SwingHeight(ctx context.Context) (float64, error) {
	return c.getFloat(ctx, APIGetSwingHeight)
}

// StandHeight returns the current stand height.
func (c *Client) StandHeight(ctx context.Context) (float64, error) {
	return c.getFloat(ctx, APIGetStandHeight)
}

// Phase returns the gait phase values.
func (c *Client) Phase(ctx context.Context) ([]float64, error) {
	data, err := c.call(ctx, APIGetPhase, nil)
	if err != nil {
		return nil, err
	}
	var v struct {
		Data []float64 `json:"data"`
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("loco api %d: decode %q: %w", APIGetPhase, data, err)
	}
	return v.Data, nil
}

// SetFsmID switches the locomotion state machine.
func (c *Client) SetFsmID(ctx context.Context, id int) error {
	_, err := c.call(ctx, APISetFsmID, intData{Data: id})
	return err
}

// SetBalanceMode sets the balance mode.
func (c *Client) SetBalanceMode(ctx context.Context, mode int) error {
	_, err := c.call(ctx, APISetBalanceMode, intData{Data: mode})
	return err
}

// SetSwingHeight sets the foot swing height.
func (c *Client) SetSwingHeight(ctx context.Context, height float64) error {
	_, err := c.call(ctx, APISetSwingHeight, floatData{Data: height})
	return err
}

// SetStandHeight sets the stand height.
func (c *Client) SetStandHeight(ctx context.Context, height float64) error {
	_, err := c.call(ctx, APISetStandHeight, floatData{Data: height})
	return err
}

// SetVelocity commands a body velocity held for duration seconds.
func (c *Client) SetVelocity(ctx context.Context, vx, vy, omega, duration float64) error {
	_, err := c.call(ctx, APISetVelocity, velocityParam{
		Velocity: [3]float64{vx, vy, omega},
		Duration: duration,
	})
	return err
}

// SetTaskID starts an arm task.
func (c *Client) SetTaskID(ctx context.Context, id int) error {
	_, err := c.call(ctx, APISetArmTask, intData{Data: id})
	return err
}
