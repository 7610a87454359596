// Package peer implements the JSON-RPC client used to ask a single quoting
// peer for a price quote or a signed order.
package peer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/peerquote/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second

	// maxResponseBytes caps how much of a peer's response body is read.
	maxResponseBytes = 1 << 20
)

// ClientConfig holds the transport settings shared by every peer call.
type ClientConfig struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Client performs one JSON-RPC exchange per Call. The transport is chosen
// from the locator's scheme: "https" goes over TLS, anything else is
// plaintext HTTP. Client is safe for concurrent use.
type Client struct {
	plain   *http.Client
	secure  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a peer client. A zero timeout falls back to 10s; there is
// always a finite bound on each call.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	secureTransport := http.DefaultTransport.(*http.Transport).Clone()
	secureTransport.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for test makers
	}

	return &Client{
		plain: &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		secure: &http.Client{
			Timeout:   timeout,
			Transport: secureTransport,
		},
		timeout: timeout,
		logger:  logger.With(slog.String("component", "peer_client")),
	}
}

// Call sends method with params to the peer at locator and returns the raw
// result payload. Failures are returned as *ConnectionError or *MakerError.
func (c *Client) Call(ctx context.Context, locator, method string, params any) (json.RawMessage, error) {
	endpoint, httpClient, err := c.resolve(locator)
	if err != nil {
		return nil, &ConnectionError{Locator: locator, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	id := uuid.NewString()
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		// Params are built by this process; failing to encode them is a
		// programming error rather than a peer fault.
		return nil, fmt.Errorf("peer: marshal %s params: %w: %v", method, domain.ErrInvalidRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ConnectionError{Locator: locator, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{Locator: locator, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ConnectionError{Locator: locator, Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.DebugContext(ctx, "peer responded",
		slog.String("locator", locator),
		slog.String("method", method),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &ConnectionError{Locator: locator, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
		}
		return nil, &ConnectionError{Locator: locator, Err: fmt.Errorf("decode response: %w", err)}
	}

	if rpcResp.Error != nil {
		return nil, &MakerError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
			Data:    dataString(rpcResp.Error.Data),
		}
	}

	if err := rpcResp.matchesID(id); err != nil {
		return nil, &ConnectionError{Locator: locator, Err: err}
	}

	return rpcResp.Result, nil
}

// resolve turns a locator into a request URL and picks the transport.
// Locators without a scheme are treated as plaintext HTTP hosts.
func (c *Client) resolve(locator string) (string, *http.Client, error) {
	raw := strings.TrimSpace(locator)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, fmt.Errorf("parse locator: %w", err)
	}
	if u.Host == "" {
		return "", nil, fmt.Errorf("locator %q has no host", locator)
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
		return u.String(), c.secure, nil
	case "http":
		return u.String(), c.plain, nil
	default:
		return "", nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

// dataString flattens the optional error data member for display.
func dataString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
