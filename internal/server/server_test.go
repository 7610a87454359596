package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/peerquote/internal/aggregator"
	"github.com/alanyoungcy/peerquote/internal/domain"
	"github.com/alanyoungcy/peerquote/internal/platform/peer"
	"github.com/alanyoungcy/peerquote/internal/quote/quotetest"
	"github.com/alanyoungcy/peerquote/internal/server/handler"
	"github.com/alanyoungcy/peerquote/internal/server/ws"
)

// fakeFinder replays a fixed list of outcomes through the observer.
type fakeFinder struct {
	mu       sync.Mutex
	outcomes []domain.PeerOutcome
	err      error
	lastReq  domain.Request
}

func (f *fakeFinder) Best(_ context.Context, req domain.Request, observe aggregator.Observer) (domain.AggregationResult, error) {
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.err != nil {
		return domain.AggregationResult{}, f.err
	}
	res := domain.AggregationResult{RoundID: "round-1", Requested: len(f.outcomes)}
	for _, o := range f.outcomes {
		if observe != nil {
			observe(o)
		}
		if o.Err != nil {
			res.Errors = append(res.Errors, domain.PeerError{Locator: o.Locator, Message: o.Err.Error()})
			continue
		}
		res.Results = append(res.Results, domain.PeerResult{Locator: o.Locator, Quote: *o.Quote})
		if res.Best == nil || o.Quote.SenderAmount().Cmp(res.Best.SenderAmount()) < 0 {
			q := *o.Quote
			res.Best = &q
			res.Locator = o.Locator
		}
	}
	return res, nil
}

type fakeLimiter struct {
	allow bool
	err   error
}

func (l fakeLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return l.allow, l.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func twoPeers() []domain.PeerOutcome {
	cheap := quotetest.PriceQuote(2_000_000_000_000_000_000, 3_000)
	return []domain.PeerOutcome{
		{Locator: "https://cheap.example", Quote: &cheap},
		{Locator: "https://down.example", Err: &peer.ConnectionError{Locator: "https://down.example", Err: errors.New("refused")}},
	}
}

func newTestServer(t *testing.T, finder handler.QuoteFinder, cfg Config, limiter domain.RateLimiter) *httptest.Server {
	t.Helper()
	handlers := Handlers{
		Health: handler.NewHealthHandler(nil, discard()),
		Quotes: handler.NewQuoteHandler(finder, 0, discard()),
		Stream: ws.NewStreamHandler(finder, cfg.CORSOrigins, discard()),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "# metrics\n")
		}),
	}
	srv := httptest.NewServer(NewServer(cfg, handlers, limiter, discard()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func bestBody() string {
	return fmt.Sprintf(`{
		"side": "buy",
		"amount": "2",
		"of": {"address": %q, "symbol": "WETH", "decimals": 18},
		"for": {"address": %q, "symbol": "DAI", "decimals": 0}
	}`, quotetest.WETH.Hex(), quotetest.DAI.Hex())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeFinder{}, Config{APIKey: "k"}, nil)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestBestQuote(t *testing.T) {
	finder := &fakeFinder{outcomes: twoPeers()}
	srv := newTestServer(t, finder, Config{}, nil)

	resp, err := http.Post(srv.URL+"/api/quotes/best", "application/json", strings.NewReader(bestBody()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out handler.BestQuoteResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	assert.Equal(t, "round-1", out.RoundID)
	assert.Equal(t, "getSenderSideQuote", out.Method)
	assert.Equal(t, "https://cheap.example", out.Locator)
	assert.Contains(t, string(out.Quote), `"amount":"3000"`)
	require.NotNil(t, out.Summary)
	assert.Equal(t, "Buy 2 WETH for 3000 DAI", out.Summary.Headline)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0].Message, "Connection Error")

	assert.Equal(t, "2000000000000000000", finder.lastReq.Params.SignerAmount.String())
}

func TestBestQuoteNoWinner(t *testing.T) {
	srv := newTestServer(t, &fakeFinder{}, Config{}, nil)

	resp, err := http.Post(srv.URL+"/api/quotes/best", "application/json", strings.NewReader(bestBody()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Nil(t, out["quote"])
	assert.Equal(t, []any{}, out["errors"])
}

func TestBestQuoteBadRequests(t *testing.T) {
	srv := newTestServer(t, &fakeFinder{}, Config{}, nil)

	for name, body := range map[string]string{
		"not json":      `{`,
		"unknown field": `{"sides": "buy"}`,
		"bad address":   `{"side":"buy","amount":"1","of":{"address":"weth"},"for":{"address":"dai"}}`,
		"bad amount":    strings.Replace(bestBody(), `"2"`, `"two"`, 1),
	} {
		resp, err := http.Post(srv.URL+"/api/quotes/best", "application/json", strings.NewReader(body))
		require.NoError(t, err, name)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
	}
}

func TestBestQuoteDirectoryDown(t *testing.T) {
	finder := &fakeFinder{err: fmt.Errorf("service: get locators: %w", domain.ErrDirectoryUnavailable)}
	srv := newTestServer(t, finder, Config{}, nil)

	resp, err := http.Post(srv.URL+"/api/quotes/best", "application/json", strings.NewReader(bestBody()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, &fakeFinder{}, Config{APIKey: "secret", MetricsPath: "/metrics"}, nil)

	resp, err := http.Post(srv.URL+"/api/quotes/best", "application/json", strings.NewReader(bestBody()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/quotes/best", strings.NewReader(bestBody()))
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "# metrics")
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, &fakeFinder{}, Config{RateLimit: 1, RateWindow: time.Minute}, fakeLimiter{allow: false})

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))

	// A broken limiter fails open.
	srv = newTestServer(t, &fakeFinder{}, Config{RateLimit: 1, RateWindow: time.Minute}, fakeLimiter{err: errors.New("down")})
	resp, err = http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeFinder{}, Config{APIKey: "secret", CORSOrigins: []string{"https://ui.example"}}, nil)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/quotes/best", nil)
	req.Header.Set("Origin", "https://ui.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://ui.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodOptions, srv.URL+"/api/quotes/best", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func streamURL(srv *httptest.Server, extra string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/quotes?side=buy&amount=2&decimals_for=0" +
		"&of=" + quotetest.WETH.Hex() + "&for=" + quotetest.DAI.Hex() + extra
}

func TestStreamQuotes(t *testing.T) {
	srv := newTestServer(t, &fakeFinder{outcomes: twoPeers()}, Config{APIKey: "secret"}, nil)

	conn, _, err := websocket.DefaultDialer.Dial(streamURL(srv, "&api_key=secret"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var frames []ws.Frame
	for {
		var f ws.Frame
		if err := conn.ReadJSON(&f); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		frames = append(frames, f)
	}

	require.Len(t, frames, 3)
	assert.Equal(t, ws.FrameOutcome, frames[0].Type)
	assert.True(t, frames[0].OK)
	assert.Equal(t, "3000", frames[0].SenderAmount)
	assert.Equal(t, ws.FrameOutcome, frames[1].Type)
	assert.Contains(t, frames[1].Error, "Connection Error")
	assert.Equal(t, ws.FrameResult, frames[2].Type)
	require.NotNil(t, frames[2].Result)
	assert.Equal(t, "https://cheap.example", frames[2].Result.Locator)
}

func TestStreamRejectsBadQuery(t *testing.T) {
	srv := newTestServer(t, &fakeFinder{}, Config{}, nil)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/quotes?side=buy", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStreamDirectoryError(t *testing.T) {
	srv := newTestServer(t, &fakeFinder{err: domain.ErrDirectoryUnavailable}, Config{}, nil)

	conn, _, err := websocket.DefaultDialer.Dial(streamURL(srv, ""), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var f ws.Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, ws.FrameError, f.Type)
	assert.Contains(t, f.Error, "directory unavailable")
}
