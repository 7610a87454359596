package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PEERQUOTE_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PEERQUOTE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "PEERQUOTE_CHAIN_RPC_URL")
	setInt(&cfg.Chain.ChainID, "PEERQUOTE_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.IndexerAddress, "PEERQUOTE_CHAIN_INDEXER_ADDRESS")
	setStr(&cfg.Chain.SwapAddress, "PEERQUOTE_CHAIN_SWAP_ADDRESS")

	// ── Directory ──
	setStr(&cfg.Directory.Protocol, "PEERQUOTE_DIRECTORY_PROTOCOL")
	setStr(&cfg.Directory.Cursor, "PEERQUOTE_DIRECTORY_CURSOR")
	setInt(&cfg.Directory.MaxLocators, "PEERQUOTE_DIRECTORY_MAX_LOCATORS")
	setDuration(&cfg.Directory.CacheTTL, "PEERQUOTE_DIRECTORY_CACHE_TTL")

	// ── Peer / aggregator ──
	setDuration(&cfg.Peer.RequestTimeout, "PEERQUOTE_PEER_REQUEST_TIMEOUT")
	setInt(&cfg.Peer.MaxInFlight, "PEERQUOTE_PEER_MAX_IN_FLIGHT")
	setBool(&cfg.Peer.InsecureSkipVerify, "PEERQUOTE_PEER_INSECURE_SKIP_VERIFY")
	setDuration(&cfg.Aggregator.RoundTimeout, "PEERQUOTE_AGGREGATOR_ROUND_TIMEOUT")

	// ── Query ──
	setStr(&cfg.Query.Side, "PEERQUOTE_QUERY_SIDE")
	setStr(&cfg.Query.Kind, "PEERQUOTE_QUERY_KIND")
	setStr(&cfg.Query.Amount, "PEERQUOTE_QUERY_AMOUNT")
	setStr(&cfg.Query.Of, "PEERQUOTE_QUERY_OF")
	setStr(&cfg.Query.For, "PEERQUOTE_QUERY_FOR")
	setStr(&cfg.Query.SymbolOf, "PEERQUOTE_QUERY_SYMBOL_OF")
	setStr(&cfg.Query.SymbolFor, "PEERQUOTE_QUERY_SYMBOL_FOR")
	setInt(&cfg.Query.DecimalsOf, "PEERQUOTE_QUERY_DECIMALS_OF")
	setInt(&cfg.Query.DecimalsFor, "PEERQUOTE_QUERY_DECIMALS_FOR")
	setStr(&cfg.Query.SenderWallet, "PEERQUOTE_QUERY_SENDER_WALLET")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PEERQUOTE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PEERQUOTE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PEERQUOTE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PEERQUOTE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PEERQUOTE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PEERQUOTE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PEERQUOTE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "PEERQUOTE_REDIS_KEY_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "PEERQUOTE_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "PEERQUOTE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "PEERQUOTE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "PEERQUOTE_SERVER_RATE_WINDOW")
	setStringSlice(&cfg.Server.CORSOrigins, "PEERQUOTE_SERVER_CORS_ORIGINS")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "PEERQUOTE_METRICS_ENABLED")
	setStr(&cfg.Metrics.Path, "PEERQUOTE_METRICS_PATH")

	// ── Top-level ──
	setStr(&cfg.Mode, "PEERQUOTE_MODE")
	setStr(&cfg.LogLevel, "PEERQUOTE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
