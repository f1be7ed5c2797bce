// Package transcribe provides a client for AssemblyAI's realtime
// speech-to-text websocket API.
package transcribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	RealtimeURL       = "wss://api.assemblyai.com/v2/realtime/ws"
	DefaultSampleRate = 16000

	pingInterval = 30 * time.Second
	readTimeout  = 120 * time.Second
	writeTimeout = 10 * time.Second
	closeTimeout = 5 * time.Second
)

var (
	ErrNotConnected = errors.New("transcribe: not connected")
	ErrNoAPIKey     = errors.New("transcribe: missing API key")
)

// Message types sent by the server.
const (
	MsgSessionBegins     = "SessionBegins"
	MsgPartialTranscript = "PartialTranscript"
	MsgFinalTranscript   = "FinalTranscript"
	MsgSessionTerminated = "SessionTerminated"
)

// Transcript is a partial or final transcription result.
type Transcript struct {
	Text       string
	Final      bool
	Confidence float64
	AudioStart int
	AudioEnd   int
}

// serverMessage covers every frame the server sends.
type serverMessage struct {
	MessageType string  `json:"message_type"`
	SessionID   string  `json:"session_id"`
	ExpiresAt   string  `json:"expires_at"`
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	AudioStart  int     `json:"audio_start"`
	AudioEnd    int     `json:"audio_end"`
	Error       string  `json:"error"`
}

type audioMessage struct {
	AudioData string `json:"audio_data"`
}

type terminateMessage struct {
	TerminateSession bool `json:"terminate_session"`
}

// Client manages one realtime transcription session.
type Client struct {
	apiKey     string
	url        string
	sampleRate int
	logger     *slog.Logger

	ws   *websocket.Conn
	wsMu sync.Mutex

	sessionID  string
	stateMu    sync.Mutex
	connected  bool
	closed     bool
	done       chan struct{}
	terminated chan struct{}
	closeOnce  sync.Once

	// Callbacks
	OnOpen  func(sessionID string)
	OnData  func(t Transcript)
	OnError func(err error)
	OnClose func()
}

// Option configures a Client.
type Option func(*Client)

// WithURL overrides the realtime endpoint.
func WithURL(u string) Option {
	return func(c *Client) { c.url = u }
}

// WithSampleRate sets the audio sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(c *Client) { c.sampleRate = rate }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new realtime transcription client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		url:        RealtimeURL,
		sampleRate: DefaultSampleRate,
		done:       make(chan struct{}),
		terminated: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "transcribe")
	return c
}

// Connect opens the websocket session.
func (c *Client) Connect(ctx context.Context) error {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}

	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("transcribe: bad url: %w", err)
	}
	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(c.sampleRate))
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", c.apiKey)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	ws, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("transcribe: connect: %w (http %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("transcribe: connect: %w", err)
	}

	ws.SetPingHandler(func(appData string) error {
		c.wsMu.Lock()
		defer c.wsMu.Unlock()
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(closeTimeout))
	})
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})
	ws.SetReadDeadline(time.Now().Add(readTimeout))

	c.stateMu.Lock()
	c.ws = ws
	c.connected = true
	c.stateMu.Unlock()

	go c.handleMessages()
	go c.keepAlive()

	c.logger.Debug("connected", "url", u.Redacted(), "sample_rate", c.sampleRate)
	return nil
}

// keepAlive sends periodic pings until the session ends.
func (c *Client) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.wsMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.wsMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// SessionID returns the server-assigned session ID, once known.
func (c *Client) SessionID() string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.sessionID
}

// IsConnected reports whether the session is open.
func (c *Client) IsConnected() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.connected && !c.closed
}

// Done is closed when the session ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// SendAudio sends PCM16LE audio at the configured sample rate.
func (c *Client) SendAudio(pcm16 []byte) error {
	if len(pcm16) == 0 {
		return nil
	}
	return c.sendJSON(audioMessage{AudioData: base64.StdEncoding.EncodeToString(pcm16)})
}

// Stream sends audio from ch until ch closes, ctx is cancelled or the
// session ends.
func (c *Client) Stream(ctx context.Context, ch <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case pcm, ok := <-ch:
			if !ok {
				return nil
			}
			if err := c.SendAudio(pcm); err != nil {
				return err
			}
		}
	}
}

// Close asks the server to terminate the session, waits briefly for the
// SessionTerminated reply and closes the connection.
func (c *Client) Close() error {
	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return nil
	}
	connected := c.connected
	c.stateMu.Unlock()

	if !connected {
		c.markClosed()
		return nil
	}

	if err := c.sendJSON(terminateMessage{TerminateSession: true}); err == nil {
		select {
		case <-c.terminated:
		case <-c.done:
		case <-time.After(closeTimeout):
		}
	}

	c.markClosed()

	c.wsMu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.wsMu.Unlock()
	return c.ws.Close()
}

func (c *Client) markClosed() {
	c.stateMu.Lock()
	c.closed = true
	c.stateMu.Unlock()
	c.finish()
}

// finish ends the session exactly once.
func (c *Client) finish() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.OnClose != nil {
			c.OnClose()
		}
	})
}

func (c *Client) isClosed() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.closed
}

// handleMessages processes incoming websocket messages.
func (c *Client) handleMessages() {
	defer c.finish()

	for {
		c.ws.SetReadDeadline(time.Now().Add(readTimeout))

		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.isClosed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.reportError(fmt.Errorf("transcribe: read: %w", err))
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("ignoring malformed message", "error", err)
			continue
		}

		if msg.Error != "" {
			c.reportError(fmt.Errorf("transcribe: server error: %s", msg.Error))
			continue
		}

		switch msg.MessageType {
		case MsgSessionBegins:
			c.stateMu.Lock()
			c.sessionID = msg.SessionID
			c.stateMu.Unlock()
			c.logger.Info("session started", "session_id", msg.SessionID, "expires_at", msg.ExpiresAt)
			if c.OnOpen != nil {
				c.OnOpen(msg.SessionID)
			}

		case MsgPartialTranscript, MsgFinalTranscript:
			if msg.Text == "" {
				continue
			}
			if c.OnData != nil {
				c.OnData(Transcript{
					Text:       msg.Text,
					Final:      msg.MessageType == MsgFinalTranscript,
					Confidence: msg.Confidence,
					AudioStart: msg.AudioStart,
					AudioEnd:   msg.AudioEnd,
				})
			}

		case MsgSessionTerminated:
			c.logger.Info("session terminated", "session_id", c.SessionID())
			close(c.terminated)
			return
		}
	}
}

func (c *Client) reportError(err error) {
	c.logger.Warn("session error", "error", err)
	if c.OnError != nil {
		c.OnError(err)
	}
}

// sendJSON sends a JSON message over the websocket.
func (c *Client) sendJSON(v any) error {
	c.stateMu.Lock()
	ok := c.connected && !c.closed
	c.stateMu.Unlock()
	if !ok {
		return ErrNotConnected
	}

	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}
