// Package aggregator fans one request out to every peer of a round and
// collects each outcome exactly once.
package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/peerquote/internal/domain"
	"github.com/alanyoungcy/peerquote/internal/metrics"
	"github.com/alanyoungcy/peerquote/internal/platform/peer"
	"github.com/alanyoungcy/peerquote/internal/quote"
)

// Config bounds a round.
type Config struct {
	// MaxInFlight caps concurrent peer calls. Zero means one goroutine per peer.
	MaxInFlight int
	// RoundTimeout is a deadline for the whole round. Calls still running
	// when it passes resolve as connection errors. Zero disables it.
	RoundTimeout time.Duration
}

// Observer is called from the collector for every outcome, in completion
// order. It must not block for long; the round waits on it.
type Observer func(domain.PeerOutcome)

// Aggregator runs aggregation rounds. It holds no per-round state and is
// safe for concurrent use.
type Aggregator struct {
	caller    domain.PeerCaller
	validator *quote.Validator
	cfg       Config
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates an Aggregator. A nil m records into unregistered collectors.
func New(
	caller domain.PeerCaller,
	validator *quote.Validator,
	cfg Config,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Aggregator {
	if m == nil {
		m = metrics.Nop()
	}
	return &Aggregator{
		caller:    caller,
		validator: validator,
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With(slog.String("component", "aggregator")),
	}
}

// Run sends req to every locator and returns once each call has produced
// exactly one outcome. Per-peer failures end up in the result's Errors and
// never fail the round. With no locators the round completes immediately.
func (a *Aggregator) Run(
	ctx context.Context,
	locators []string,
	req domain.Request,
	observe Observer,
) domain.AggregationResult {
	result := domain.AggregationResult{
		RoundID:   uuid.NewString(),
		Requested: len(locators),
		Results:   []domain.PeerResult{},
		Errors:    []domain.PeerError{},
	}
	logger := a.logger.With(slog.String("round_id", result.RoundID))

	if len(locators) == 0 {
		logger.Info("round has no peers")
		a.metrics.ObserveRound(metrics.RoundNoResults, 0)
		return result
	}

	if a.cfg.RoundTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.RoundTimeout)
		defer cancel()
	}

	logger.Info("round started",
		slog.Int("requested", len(locators)),
		slog.String("method", req.Method),
	)
	start := time.Now()

	// Each call sends exactly one outcome. The buffer lets calls finish
	// even if the collector is slow.
	outcomes := make(chan domain.PeerOutcome, len(locators))

	// A plain group: one peer failing must not cancel the others.
	var g errgroup.Group
	if a.cfg.MaxInFlight > 0 {
		g.SetLimit(a.cfg.MaxInFlight)
	}
	go func() {
		for _, loc := range locators {
			loc := loc
			g.Go(func() error {
				outcomes <- a.call(ctx, loc, req)
				return nil
			})
		}
		_ = g.Wait()
		close(outcomes)
	}()

	completed := 0
	for o := range outcomes {
		completed++
		a.collect(logger, &result, o)
		if observe != nil {
			observe(o)
		}
	}
	elapsed := time.Since(start)

	if best, ok := quote.SelectBest(result.Results); ok {
		q := best.Quote
		result.Best = &q
		result.Locator = best.Locator
		a.metrics.ObserveRound(metrics.RoundWinner, elapsed)
	} else {
		a.metrics.ObserveRound(metrics.RoundNoResults, elapsed)
	}

	logger.Info("round finished",
		slog.Int("completed", completed),
		slog.Int("results", len(result.Results)),
		slog.Int("errors", len(result.Errors)),
		slog.String("winner", result.Locator),
		slog.Duration("elapsed", elapsed),
	)
	return result
}

// call performs one peer exchange and validates the payload.
func (a *Aggregator) call(ctx context.Context, locator string, req domain.Request) domain.PeerOutcome {
	raw, err := a.caller.Call(ctx, locator, req.Method, req.Params)
	if err != nil {
		return domain.PeerOutcome{Locator: locator, Err: err}
	}
	q, err := a.validator.Check(req.Kind, raw)
	if err != nil {
		return domain.PeerOutcome{Locator: locator, Err: err}
	}
	return domain.PeerOutcome{Locator: locator, Quote: &q}
}

// collect is only ever called from the collector loop in Run.
func (a *Aggregator) collect(logger *slog.Logger, result *domain.AggregationResult, o domain.PeerOutcome) {
	if o.Err != nil {
		result.Errors = append(result.Errors, domain.PeerError{
			Locator: o.Locator,
			Message: o.Err.Error(),
		})
		a.metrics.ObservePeer(Classify(o.Err))
		logger.Debug("peer failed",
			slog.String("locator", o.Locator),
			slog.String("error", o.Err.Error()),
		)
		return
	}
	result.Results = append(result.Results, domain.PeerResult{
		Locator: o.Locator,
		Quote:   *o.Quote,
	})
	a.metrics.ObservePeer(metrics.PeerResult)
	logger.Debug("peer quoted",
		slog.String("locator", o.Locator),
		slog.String("sender_amount", o.Quote.SenderAmount().String()),
	)
}

// Classify maps a peer failure to its metrics outcome label.
func Classify(err error) string {
	switch {
	case err == nil:
		return metrics.PeerResult
	case peer.IsConnectionError(err):
		return metrics.PeerConnectionError
	case peer.IsMakerError(err):
		return metrics.PeerMakerError
	case errors.Is(err, domain.ErrInvalidOrder), errors.Is(err, domain.ErrMalformedQuote):
		return metrics.PeerInvalid
	default:
		return metrics.PeerConnectionError
	}
}
