package peer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoPeer answers every request with the given result or error member,
// echoing the request id.
func echoPeer(t *testing.T, result any, rpcErr *rpcError) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, "getSenderSideQuote", req.Method)

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestCallReturnsResult(t *testing.T) {
	srv := httptest.NewServer(echoPeer(t, map[string]string{"ok": "yes"}, nil))
	defer srv.Close()

	c := NewClient(ClientConfig{Timeout: time.Second}, testLogger())
	raw, err := c.Call(context.Background(), srv.URL, "getSenderSideQuote", map[string]string{"a": "1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":"yes"}`, string(raw))
}

func TestCallOverTLS(t *testing.T) {
	srv := httptest.NewTLSServer(echoPeer(t, "pong", nil))
	defer srv.Close()

	c := NewClient(ClientConfig{Timeout: time.Second, InsecureSkipVerify: true}, testLogger())
	raw, err := c.Call(context.Background(), srv.URL, "getSenderSideQuote", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"pong"`, string(raw))
}

func TestCallTLSFailureIsConnectionError(t *testing.T) {
	srv := httptest.NewTLSServer(echoPeer(t, "pong", nil))
	defer srv.Close()

	// Self-signed certificate without the opt-out.
	c := NewClient(ClientConfig{Timeout: time.Second}, testLogger())
	_, err := c.Call(context.Background(), srv.URL, "getSenderSideQuote", nil)
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
}

func TestCallMakerError(t *testing.T) {
	srv := httptest.NewServer(echoPeer(t, nil, &rpcError{Code: -33601, Message: "Not serving pair"}))
	defer srv.Close()

	c := NewClient(ClientConfig{Timeout: time.Second}, testLogger())
	_, err := c.Call(context.Background(), srv.URL, "getSenderSideQuote", nil)
	require.Error(t, err)
	assert.True(t, IsMakerError(err))
	assert.False(t, IsConnectionError(err))
	assert.Contains(t, err.Error(), "Maker Error")
	assert.Contains(t, err.Error(), "Not serving pair")

	var me *MakerError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, -33601, me.Code)
}

func TestCallUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(ClientConfig{Timeout: time.Second}, testLogger())
	_, err := c.Call(context.Background(), url, "getSenderSideQuote", nil)
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.Contains(t, err.Error(), "Connection Error")
	assert.Contains(t, err.Error(), url)
}

func TestCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Timeout: 50 * time.Millisecond}, testLogger())
	start := time.Now()
	_, err := c.Call(context.Background(), srv.URL, "getSenderSideQuote", nil)
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCallNonJSONErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Timeout: time.Second}, testLogger())
	_, err := c.Call(context.Background(), srv.URL, "getSenderSideQuote", nil)
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestCallRejectsMismatchedID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":"someone-else","result":{}}`)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Timeout: time.Second}, testLogger())
	_, err := c.Call(context.Background(), srv.URL, "getSenderSideQuote", nil)
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
}

func TestResolveSchemes(t *testing.T) {
	c := NewClient(ClientConfig{}, testLogger())

	u, hc, err := c.resolve("https://maker.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://maker.example.com", u)
	assert.Same(t, c.secure, hc)

	u, hc, err = c.resolve("maker.example.com:8080")
	require.NoError(t, err)
	assert.Equal(t, "http://maker.example.com:8080", u)
	assert.Same(t, c.plain, hc)

	_, _, err = c.resolve("ftp://maker.example.com")
	assert.Error(t, err)
}
