// Package service ties the directory, locator decoding and the aggregator
// into one quote lookup, and converts between human and atomic amounts.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/peerquote/internal/aggregator"
	"github.com/alanyoungcy/peerquote/internal/domain"
	"github.com/alanyoungcy/peerquote/internal/locator"
	"github.com/alanyoungcy/peerquote/internal/metrics"
)

// DirectoryConfig selects which page of the directory a round reads.
type DirectoryConfig struct {
	Protocol    [2]byte
	Cursor      common.Address
	MaxLocators int
}

// Rounder runs one aggregation round over decoded locators.
type Rounder interface {
	Run(ctx context.Context, locators []string, req domain.Request, observe aggregator.Observer) domain.AggregationResult
}

// QuoteService finds the best quote for a request.
type QuoteService struct {
	directory domain.Directory
	rounds    Rounder
	cfg       DirectoryConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewQuoteService creates a QuoteService.
func NewQuoteService(
	directory domain.Directory,
	rounds Rounder,
	cfg DirectoryConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *QuoteService {
	if m == nil {
		m = metrics.Nop()
	}
	return &QuoteService{
		directory: directory,
		rounds:    rounds,
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With(slog.String("component", "quote_service")),
	}
}

// Best looks up the peers for the request's pair, asks each of them, and
// returns the round's result. A directory failure aborts the round. A round
// without any valid quote is not an error; check HasWinner.
func (s *QuoteService) Best(ctx context.Context, req domain.Request, observe aggregator.Observer) (domain.AggregationResult, error) {
	q := domain.DirectoryQuery{
		SignerToken: req.Params.SignerToken,
		SenderToken: req.Params.SenderToken,
		Protocol:    s.cfg.Protocol,
		Cursor:      s.cfg.Cursor,
		Limit:       s.cfg.MaxLocators,
	}

	page, err := s.directory.GetLocators(ctx, q)
	if err != nil {
		s.metrics.ObserveRound(metrics.RoundDirectoryError, 0)
		return domain.AggregationResult{}, fmt.Errorf("service: get locators: %w", err)
	}

	locators, dropped := locator.DecodeAll(page.Locators)
	s.metrics.DroppedLocators(dropped)
	if dropped > 0 {
		s.logger.DebugContext(ctx, "dropped undecodable locators",
			slog.Int("dropped", dropped),
			slog.Int("kept", len(locators)),
		)
	}

	start := time.Now()
	result := s.rounds.Run(ctx, locators, req, observe)
	result.NextCursor = page.NextCursor

	s.logger.InfoContext(ctx, "best quote lookup done",
		slog.String("round_id", result.RoundID),
		slog.String("method", req.Method),
		slog.Bool("winner", result.HasWinner()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}
