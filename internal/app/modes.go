package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/peerquote/internal/config"
	"github.com/alanyoungcy/peerquote/internal/domain"
	"github.com/alanyoungcy/peerquote/internal/server"
	"github.com/alanyoungcy/peerquote/internal/server/handler"
	"github.com/alanyoungcy/peerquote/internal/server/ws"
	"github.com/alanyoungcy/peerquote/internal/service"
)

// noResults is printed when a round produced no valid quote.
const noResults = "No valid results found."

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// QueryMode runs a single round for the configured trade and prints the
// winner. Peer errors are printed only at debug level.
func (a *App) QueryMode(ctx context.Context, deps *Dependencies) error {
	in := queryIntent(a.cfg.Query)
	req, err := service.BuildRequest(in)
	if err != nil {
		return fmt.Errorf("app: query: %w", err)
	}

	a.logger.InfoContext(ctx, "querying peers",
		slog.String("method", req.Method),
		slog.String("signer_token", req.Params.SignerToken.Hex()),
		slog.String("sender_token", req.Params.SenderToken.Hex()),
	)

	result, err := deps.Quotes.Best(ctx, req, nil)
	if err != nil {
		return fmt.Errorf("app: query: %w", err)
	}

	a.logger.InfoContext(ctx, "round complete",
		slog.String("round_id", result.RoundID),
		slog.Int("results", len(result.Results)),
		slog.Int("errors", len(result.Errors)),
	)
	return printResult(a.out, in, req, result, a.cfg.LogLevel == "debug")
}

// ServerMode serves the HTTP and WebSocket API until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	scfg := a.cfg.Server
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Quotes: handler.NewQuoteHandler(deps.Quotes, requestTimeout(a.cfg), a.logger),
		Stream: ws.NewStreamHandler(deps.Quotes, scfg.CORSOrigins, a.logger),
	}
	metricsPath := ""
	if deps.MetricsHandler != nil {
		handlers.Metrics = deps.MetricsHandler
		metricsPath = a.cfg.Metrics.Path
	}

	srv := server.NewServer(server.Config{
		Port:        scfg.Port,
		CORSOrigins: scfg.CORSOrigins,
		APIKey:      scfg.APIKey,
		RateLimit:   scfg.RateLimit,
		RateWindow:  scfg.RateWindow.Duration,
		MetricsPath: metricsPath,
	}, handlers, deps.RateLimiter, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.InfoContext(gctx, "HTTP server listening",
			slog.Int("port", scfg.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", scfg.Port)))
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// requestTimeout leaves room past the round deadline for the directory read
// and the response.
func requestTimeout(cfg *config.Config) time.Duration {
	if cfg.Aggregator.RoundTimeout.Duration <= 0 {
		return 0
	}
	return cfg.Aggregator.RoundTimeout.Duration + cfg.Peer.RequestTimeout.Duration
}

func queryIntent(q config.QueryConfig) service.Intent {
	in := service.Intent{
		Side:   q.Side,
		Kind:   q.Kind,
		Amount: q.Amount,
		Of: service.Token{
			Address:  common.HexToAddress(q.Of),
			Symbol:   q.SymbolOf,
			Decimals: int32(q.DecimalsOf),
		},
		For: service.Token{
			Address:  common.HexToAddress(q.For),
			Symbol:   q.SymbolFor,
			Decimals: int32(q.DecimalsFor),
		},
	}
	if q.SenderWallet != "" {
		in.SenderWallet = common.HexToAddress(q.SenderWallet)
	}
	return in
}

// printResult writes the winning quote the way the trade was phrased, or
// the no-results line.
func printResult(w io.Writer, in service.Intent, req domain.Request, result domain.AggregationResult, verbose bool) error {
	var errs []error
	p := func(format string, args ...any) {
		_, err := fmt.Fprintf(w, format, args...)
		errs = append(errs, err)
	}

	if verbose {
		for _, pe := range result.Errors {
			p("Error from %s: %s\n", pe.Locator, pe.Message)
		}
	}

	if !result.HasWinner() {
		p("%s\n", noResults)
		return errors.Join(errs...)
	}

	s := service.Summarize(req.Side, in.Of, in.For, *result.Best)
	p("Response: %s\n\n", result.Locator)
	p("%s\n", s.Headline)
	p("%s\n", s.Price)
	if !s.Expiry.IsZero() {
		p("Expiry %s\n", s.Expiry.Local().Format(time.TimeOnly))
	}
	return errors.Join(errs...)
}
