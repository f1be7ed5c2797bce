package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// HTTPTransport posts each request as JSON to the service bridge.
type HTTPTransport struct {
	BaseURL string
	client  *http.Client
	closed  atomic.Bool
}

// NewHTTPTransport creates a transport for baseURL (e.g. "http://192.168.123.164:8080").
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{BaseURL: baseURL, client: client}
}

// Call posts req to {BaseURL}/rt/api/{service}/request.
func (h *HTTPTransport) Call(ctx context.Context, service string, req Request) (Response, error) {
	if h.closed.Load() {
		return Response{}, ErrClosed
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+Path(service), bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return Response{}, ctxErr(ctx, fmt.Errorf("post %s: %w", service, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusNotFound {
			return Response{}, fmt.Errorf("%w: %s (%s)", ErrNoService, service, bytes.TrimSpace(msg))
		}
		return Response{}, fmt.Errorf("channel: http %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if req.Header.Policy.NoReply {
		return Response{}, nil
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// Close releases idle connections.
func (h *HTTPTransport) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	h.client.CloseIdleConnections()
	return nil
}
