package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/peerquote/internal/aggregator"
	"github.com/alanyoungcy/peerquote/internal/domain"
	"github.com/alanyoungcy/peerquote/internal/quote"
	"github.com/alanyoungcy/peerquote/internal/service"
)

// QuoteFinder runs one best-quote round.
type QuoteFinder interface {
	Best(ctx context.Context, req domain.Request, observe aggregator.Observer) (domain.AggregationResult, error)
}

// TokenParam is a token as the API accepts it.
type TokenParam struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals int32  `json:"decimals"`
}

func (t TokenParam) token(field string) (service.Token, error) {
	if !common.IsHexAddress(t.Address) {
		return service.Token{}, fmt.Errorf("%w: %s.address %q is not an address", domain.ErrInvalidRequest, field, t.Address)
	}
	return service.Token{
		Address:  common.HexToAddress(t.Address),
		Symbol:   t.Symbol,
		Decimals: t.Decimals,
	}, nil
}

// BestQuoteRequest is the body of POST /api/quotes/best.
type BestQuoteRequest struct {
	Side         string     `json:"side"`
	Kind         string     `json:"kind"`
	Amount       string     `json:"amount"`
	Of           TokenParam `json:"of"`
	For          TokenParam `json:"for"`
	SenderWallet string     `json:"sender_wallet,omitempty"`
}

// Intent validates the request and converts it for the service layer.
func (b BestQuoteRequest) Intent() (service.Intent, error) {
	of, err := b.Of.token("of")
	if err != nil {
		return service.Intent{}, err
	}
	forTok, err := b.For.token("for")
	if err != nil {
		return service.Intent{}, err
	}
	in := service.Intent{Side: b.Side, Kind: b.Kind, Amount: b.Amount, Of: of, For: forTok}
	if b.SenderWallet != "" {
		if !common.IsHexAddress(b.SenderWallet) {
			return service.Intent{}, fmt.Errorf("%w: sender_wallet %q is not an address", domain.ErrInvalidRequest, b.SenderWallet)
		}
		in.SenderWallet = common.HexToAddress(b.SenderWallet)
	}
	return in, nil
}

// BestQuoteRequestFromQuery reads the same fields from URL query parameters.
func BestQuoteRequestFromQuery(r *http.Request) (BestQuoteRequest, error) {
	q := r.URL.Query()
	decimals := func(name string) (int32, error) {
		v := q.Get(name)
		if v == "" {
			return 18, nil
		}
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %s %q is not an integer", domain.ErrInvalidRequest, name, v)
		}
		return int32(n), nil
	}
	decOf, err := decimals("decimals_of")
	if err != nil {
		return BestQuoteRequest{}, err
	}
	decFor, err := decimals("decimals_for")
	if err != nil {
		return BestQuoteRequest{}, err
	}
	return BestQuoteRequest{
		Side:         q.Get("side"),
		Kind:         q.Get("kind"),
		Amount:       q.Get("amount"),
		Of:           TokenParam{Address: q.Get("of"), Symbol: q.Get("symbol_of"), Decimals: decOf},
		For:          TokenParam{Address: q.Get("for"), Symbol: q.Get("symbol_for"), Decimals: decFor},
		SenderWallet: q.Get("sender_wallet"),
	}, nil
}

// BestQuoteResponse is the API view of one round.
type BestQuoteResponse struct {
	RoundID    string             `json:"round_id"`
	Method     string             `json:"method"`
	Requested  int                `json:"requested"`
	Locator    string             `json:"locator,omitempty"`
	Quote      json.RawMessage    `json:"quote"`
	Summary    *service.Summary   `json:"summary,omitempty"`
	Errors     []domain.PeerError `json:"errors"`
	NextCursor string             `json:"next_cursor"`
}

// NewBestQuoteResponse renders result for the intent that produced it.
func NewBestQuoteResponse(in service.Intent, req domain.Request, result domain.AggregationResult) (BestQuoteResponse, error) {
	resp := BestQuoteResponse{
		RoundID:    result.RoundID,
		Method:     req.Method,
		Requested:  result.Requested,
		Locator:    result.Locator,
		Quote:      json.RawMessage("null"),
		Errors:     result.Errors,
		NextCursor: result.NextCursor.Hex(),
	}
	if resp.Errors == nil {
		resp.Errors = []domain.PeerError{}
	}
	if result.Best != nil {
		raw, err := quote.Marshal(*result.Best)
		if err != nil {
			return BestQuoteResponse{}, fmt.Errorf("handler: encode quote: %w", err)
		}
		resp.Quote = raw
		s := service.Summarize(req.Side, in.Of, in.For, *result.Best)
		resp.Summary = &s
	}
	return resp, nil
}

// QuoteHandler serves best-quote lookups.
type QuoteHandler struct {
	finder  QuoteFinder
	timeout time.Duration
	logger  *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler. timeout bounds a whole request;
// zero leaves it to the round's own deadline.
func NewQuoteHandler(finder QuoteFinder, timeout time.Duration, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{finder: finder, timeout: timeout, logger: logHandler(logger, "quotes")}
}

// Best runs a round and returns the winner, if any, with every peer error.
// A round without a winner is still a 200 with a null quote.
// POST /api/quotes/best
func (h *QuoteHandler) Best(w http.ResponseWriter, r *http.Request) {
	var body BestQuoteRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, err := body.Intent()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	req, err := service.BuildRequest(in)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.finder.Best(ctx, req, nil)
	if err != nil {
		h.logger.WarnContext(ctx, "best quote lookup failed", slog.String("error", err.Error()))
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp, err := NewBestQuoteResponse(in, req, result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
