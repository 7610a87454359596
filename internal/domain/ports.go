package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DirectoryQuery identifies one page of peers for an asset pair.
type DirectoryQuery struct {
	SignerToken common.Address
	SenderToken common.Address
	Protocol    [2]byte
	Cursor      common.Address
	Limit       int
}

// CacheKey returns a stable key for caching a page of locators.
func (q DirectoryQuery) CacheKey() string {
	return strings.ToLower(fmt.Sprintf("%s:%s:%x:%s:%d",
		q.SignerToken.Hex(), q.SenderToken.Hex(), q.Protocol[:], q.Cursor.Hex(), q.Limit))
}

// LocatorPage is one page of opaque peer identifiers from the directory.
type LocatorPage struct {
	Locators   [][32]byte
	Scores     []*big.Int
	NextCursor common.Address
}

// Directory resolves the peers willing to quote on a pair.
type Directory interface {
	GetLocators(ctx context.Context, q DirectoryQuery) (LocatorPage, error)
}

// PeerCaller performs one remote-procedure call against a single peer.
type PeerCaller interface {
	Call(ctx context.Context, locator, method string, params any) (json.RawMessage, error)
}

// LocatorCache stores directory pages for a short time.
type LocatorCache interface {
	Get(ctx context.Context, key string) (LocatorPage, error)
	Set(ctx context.Context, key string, page LocatorPage, ttl time.Duration) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
