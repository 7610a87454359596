// Package config defines the peerquote configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/peerquote/internal/domain"
)

// HeadCursor is the directory cursor that starts at the top of the index.
const HeadCursor = "0xFFfFfFffFFfffFFfFFfFFFFFffFFFffffFfFFFfF"

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PEERQUOTE_* environment variables.
type Config struct {
	Chain      ChainConfig      `toml:"chain"`
	Directory  DirectoryConfig  `toml:"directory"`
	Peer       PeerConfig       `toml:"peer"`
	Aggregator AggregatorConfig `toml:"aggregator"`
	Query      QueryConfig      `toml:"query"`
	Redis      RedisConfig      `toml:"redis"`
	Server     ServerConfig     `toml:"server"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ChainConfig points at the EVM node and the contracts peerquote reads.
type ChainConfig struct {
	RPCURL         string `toml:"rpc_url"`
	ChainID        int    `toml:"chain_id"`
	IndexerAddress string `toml:"indexer_address"`
	// SwapAddress, when set, is the only verifying contract orders may be
	// signed for.
	SwapAddress string `toml:"swap_address"`
}

// DirectoryConfig selects the directory page read for every round.
type DirectoryConfig struct {
	Protocol    string   `toml:"protocol"`
	Cursor      string   `toml:"cursor"`
	MaxLocators int      `toml:"max_locators"`
	CacheTTL    duration `toml:"cache_ttl"`
}

// PeerConfig holds per-call transport settings.
type PeerConfig struct {
	RequestTimeout     duration `toml:"request_timeout"`
	MaxInFlight        int      `toml:"max_in_flight"`
	InsecureSkipVerify bool     `toml:"insecure_skip_verify"`
}

// AggregatorConfig bounds a whole round.
type AggregatorConfig struct {
	RoundTimeout duration `toml:"round_timeout"`
}

// QueryConfig is the trade asked for in query mode.
type QueryConfig struct {
	Side         string `toml:"side"`
	Kind         string `toml:"kind"`
	Amount       string `toml:"amount"`
	Of           string `toml:"of"`
	For          string `toml:"for"`
	SymbolOf     string `toml:"symbol_of"`
	SymbolFor    string `toml:"symbol_for"`
	DecimalsOf   int    `toml:"decimals_of"`
	DecimalsFor  int    `toml:"decimals_for"`
	SenderWallet string `toml:"sender_wallet"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// duration wraps time.Duration so that it can be unmarshalled from a TOML
// string such as "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
	CORSOrigins []string `toml:"cors_origins"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Defaults returns a Config populated with sensible default values. Any field
// set in the TOML file or via environment variables will override these.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:  "http://localhost:8545",
			ChainID: 1,
		},
		Directory: DirectoryConfig{
			Protocol:    "0x0000",
			Cursor:      HeadCursor,
			MaxLocators: 10,
			CacheTTL:    duration{30 * time.Second},
		},
		Peer: PeerConfig{
			RequestTimeout: duration{10 * time.Second},
		},
		Aggregator: AggregatorConfig{
			RoundTimeout: duration{30 * time.Second},
		},
		Query: QueryConfig{
			Side:        "buy",
			Kind:        "quote",
			DecimalsOf:  18,
			DecimalsFor: 18,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "peerquote:",
		},
		Server: ServerConfig{
			Port:        8080,
			RateLimit:   60,
			RateWindow:  duration{time.Minute},
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Mode:     "query",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"query":  true,
	"server": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for logical consistency and returns every
// problem it finds in one error.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[c.Mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: query, server)", c.Mode))
	}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if !common.IsHexAddress(c.Chain.IndexerAddress) {
		errs = append(errs, fmt.Sprintf("chain: indexer_address %q is not an address", c.Chain.IndexerAddress))
	}
	if c.Chain.SwapAddress != "" && !common.IsHexAddress(c.Chain.SwapAddress) {
		errs = append(errs, fmt.Sprintf("chain: swap_address %q is not an address", c.Chain.SwapAddress))
	}

	// Directory
	if _, err := c.Directory.ProtocolTag(); err != nil {
		errs = append(errs, "directory: "+err.Error())
	}
	if !common.IsHexAddress(c.Directory.Cursor) {
		errs = append(errs, fmt.Sprintf("directory: cursor %q is not an address", c.Directory.Cursor))
	}
	if c.Directory.MaxLocators < 1 {
		errs = append(errs, "directory: max_locators must be >= 1")
	}
	if c.Directory.CacheTTL.Duration < 0 {
		errs = append(errs, "directory: cache_ttl must not be negative")
	}

	// Peer / aggregator
	if c.Peer.RequestTimeout.Duration <= 0 {
		errs = append(errs, "peer: request_timeout must be > 0")
	}
	if c.Peer.MaxInFlight < 0 {
		errs = append(errs, "peer: max_in_flight must be >= 0")
	}
	if c.Aggregator.RoundTimeout.Duration < 0 {
		errs = append(errs, "aggregator: round_timeout must not be negative")
	}

	// Query
	if c.Mode == "query" {
		errs = append(errs, c.Query.problems()...)
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Server
	if c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	// Metrics
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Sprintf("metrics: path %q must start with /", c.Metrics.Path))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (q QueryConfig) problems() []string {
	var errs []string
	if _, err := domain.ParseSide(q.Side); err != nil {
		errs = append(errs, fmt.Sprintf("query: side %q must be buy or sell", q.Side))
	}
	kind, err := domain.ParseKind(q.Kind)
	if err != nil {
		errs = append(errs, fmt.Sprintf("query: kind %q must be quote or order", q.Kind))
	}
	if strings.TrimSpace(q.Amount) == "" {
		errs = append(errs, "query: amount must not be empty")
	}
	if !common.IsHexAddress(q.Of) {
		errs = append(errs, fmt.Sprintf("query: of %q is not a token address", q.Of))
	}
	if !common.IsHexAddress(q.For) {
		errs = append(errs, fmt.Sprintf("query: for %q is not a token address", q.For))
	}
	if kind == domain.KindOrder && !common.IsHexAddress(q.SenderWallet) {
		errs = append(errs, fmt.Sprintf("query: sender_wallet %q is required for orders", q.SenderWallet))
	}
	if q.DecimalsOf < 0 || q.DecimalsOf > 255 {
		errs = append(errs, fmt.Sprintf("query: decimals_of must be 0-255, got %d", q.DecimalsOf))
	}
	if q.DecimalsFor < 0 || q.DecimalsFor > 255 {
		errs = append(errs, fmt.Sprintf("query: decimals_for must be 0-255, got %d", q.DecimalsFor))
	}
	return errs
}

// ProtocolTag parses the bytes2 protocol identifier.
func (d DirectoryConfig) ProtocolTag() ([2]byte, error) {
	var tag [2]byte
	s := strings.TrimSpace(d.Protocol)
	if !strings.HasPrefix(s, "0x") || len(s) != 6 {
		return tag, fmt.Errorf("protocol %q must be a 0x-prefixed bytes2 value", d.Protocol)
	}
	b := common.FromHex(s)
	if len(b) != 2 {
		return tag, fmt.Errorf("protocol %q must be a 0x-prefixed bytes2 value", d.Protocol)
	}
	copy(tag[:], b)
	return tag, nil
}
