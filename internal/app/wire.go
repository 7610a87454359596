package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/peerquote/internal/aggregator"
	"github.com/alanyoungcy/peerquote/internal/cache/redis"
	"github.com/alanyoungcy/peerquote/internal/config"
	"github.com/alanyoungcy/peerquote/internal/domain"
	"github.com/alanyoungcy/peerquote/internal/metrics"
	"github.com/alanyoungcy/peerquote/internal/platform/indexer"
	"github.com/alanyoungcy/peerquote/internal/platform/peer"
	"github.com/alanyoungcy/peerquote/internal/quote"
	"github.com/alanyoungcy/peerquote/internal/server/handler"
	"github.com/alanyoungcy/peerquote/internal/service"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	Quotes *service.QuoteService

	// Optional layers; nil when disabled.
	RateLimiter    domain.RateLimiter
	MetricsHandler http.Handler

	// HealthChecks are reported by the server's health endpoint.
	HealthChecks map[string]handler.Pinger
}

// Wire builds the dependency graph for cfg. Redis and metrics are only set up
// when enabled; without Redis the directory is read on every round and the
// server does not rate limit.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{HealthChecks: make(map[string]handler.Pinger)}

	protocol, err := cfg.Directory.ProtocolTag()
	if err != nil {
		return nil, nil, fmt.Errorf("wire: %w", err)
	}

	// --- Metrics ---
	m := metrics.Nop()
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg)
		deps.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	// --- Directory ---
	idx, closeNode, err := indexer.Dial(ctx, cfg.Chain.RPCURL, int64(cfg.Chain.ChainID),
		common.HexToAddress(cfg.Chain.IndexerAddress), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: %w", err)
	}
	closers = append(closers, closeNode)
	deps.HealthChecks["chain"] = idx

	var directory domain.Directory = idx

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		directory = service.NewCachingDirectory(directory, redis.NewLocatorCache(redisClient),
			cfg.Directory.CacheTTL.Duration, logger)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.HealthChecks["redis"] = redisClient
	}

	// --- Peers ---
	caller := peer.NewClient(peer.ClientConfig{
		Timeout:            cfg.Peer.RequestTimeout.Duration,
		InsecureSkipVerify: cfg.Peer.InsecureSkipVerify,
	}, logger)

	var opts []quote.Option
	if cfg.Chain.SwapAddress != "" {
		opts = append(opts, quote.WithSwapContract(common.HexToAddress(cfg.Chain.SwapAddress)))
	}
	validator := quote.NewValidator(opts...)

	agg := aggregator.New(caller, validator, aggregator.Config{
		MaxInFlight:  cfg.Peer.MaxInFlight,
		RoundTimeout: cfg.Aggregator.RoundTimeout.Duration,
	}, m, logger)

	deps.Quotes = service.NewQuoteService(directory, agg, service.DirectoryConfig{
		Protocol:    protocol,
		Cursor:      common.HexToAddress(cfg.Directory.Cursor),
		MaxLocators: cfg.Directory.MaxLocators,
	}, m, logger)

	logger.Info("wire: dependencies ready",
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("metrics", cfg.Metrics.Enabled),
		slog.Int("max_locators", cfg.Directory.MaxLocators),
	)

	return deps, cleanup, nil
}
