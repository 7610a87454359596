// Package ws streams the progress of a best-quote round over a WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/peerquote/internal/domain"
	"github.com/alanyoungcy/peerquote/internal/server/handler"
	"github.com/alanyoungcy/peerquote/internal/service"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing frames.
	sendBufferSize = 64
)

// Frame types sent to the client.
const (
	FrameOutcome = "outcome"
	FrameResult  = "result"
	FrameError   = "error"
)

// Frame is one JSON text message on the stream.
type Frame struct {
	Type         string                     `json:"type"`
	Locator      string                     `json:"locator,omitempty"`
	OK           bool                       `json:"ok,omitempty"`
	SenderAmount string                     `json:"sender_amount,omitempty"`
	Error        string                     `json:"error,omitempty"`
	Result       *handler.BestQuoteResponse `json:"result,omitempty"`
}

func outcomeFrame(o domain.PeerOutcome) Frame {
	f := Frame{Type: FrameOutcome, Locator: o.Locator}
	if o.Err != nil {
		f.Error = o.Err.Error()
		return f
	}
	f.OK = true
	f.SenderAmount = o.Quote.SenderAmount().String()
	return f
}

// StreamHandler runs one round per connection and streams every peer
// outcome as it is collected, followed by the final result.
type StreamHandler struct {
	finder   handler.QuoteFinder
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewStreamHandler creates a StreamHandler. Upgrades are accepted from the
// given origins; an empty list accepts any origin.
func NewStreamHandler(finder handler.QuoteFinder, allowedOrigins []string, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		finder: finder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.With(slog.String("component", "ws_stream")),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// HandleQuotes validates the query, upgrades the connection and runs the
// round. Validation failures are answered with a plain HTTP 400.
// GET /ws/quotes
func (s *StreamHandler) HandleQuotes(w http.ResponseWriter, r *http.Request) {
	body, err := handler.BestQuoteRequestFromQuery(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	in, err := body.Intent()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	req, err := service.BuildRequest(in)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan Frame, sendBufferSize)
	done := make(chan struct{})
	go s.writePump(conn, send, done)
	go s.readPump(conn, cancel)

	// The observer runs on the round's collector, one outcome at a time.
	observe := func(o domain.PeerOutcome) {
		select {
		case send <- outcomeFrame(o):
		case <-ctx.Done():
		}
	}

	final := Frame{Type: FrameResult}
	result, err := s.finder.Best(ctx, req, observe)
	if err != nil {
		final = Frame{Type: FrameError, Error: err.Error()}
	} else if resp, rerr := handler.NewBestQuoteResponse(in, req, result); rerr != nil {
		final = Frame{Type: FrameError, Error: rerr.Error()}
	} else {
		final.Result = &resp
	}

	select {
	case send <- final:
	case <-ctx.Done():
	}
	close(send)
	<-done
}

// readPump only watches for the client going away, which cancels the round.
func (s *StreamHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// writePump writes frames until send is closed, then closes the stream
// cleanly. It also keeps the connection alive with pings.
func (s *StreamHandler) writePump(conn *websocket.Conn, send <-chan Frame, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case frame, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "round complete"))
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				// Keep draining so the round never blocks on a dead client.
				for range send {
				}
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				for range send {
				}
				return
			}
		}
	}
}

func writeBadRequest(w http.ResponseWriter, err error) {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	w.Write(data)
}
