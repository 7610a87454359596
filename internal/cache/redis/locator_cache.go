package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/peerquote/internal/domain"
)

// LocatorCache implements domain.LocatorCache with one JSON string per
// directory page at "{prefix}locators:{query key}".
type LocatorCache struct {
	c *Client
}

// NewLocatorCache creates a LocatorCache backed by the given Client.
func NewLocatorCache(c *Client) *LocatorCache {
	return &LocatorCache{c: c}
}

type cachedPage struct {
	Locators   []string       `json:"locators"`
	Scores     []string       `json:"scores"`
	NextCursor common.Address `json:"next_cursor"`
}

func encodePage(page domain.LocatorPage) ([]byte, error) {
	cp := cachedPage{
		Locators:   make([]string, len(page.Locators)),
		Scores:     make([]string, len(page.Scores)),
		NextCursor: page.NextCursor,
	}
	for i, l := range page.Locators {
		cp.Locators[i] = hexutil.Encode(l[:])
	}
	for i, s := range page.Scores {
		if s == nil {
			s = new(big.Int)
		}
		cp.Scores[i] = s.String()
	}
	return json.Marshal(cp)
}

func decodePage(b []byte) (domain.LocatorPage, error) {
	var cp cachedPage
	if err := json.Unmarshal(b, &cp); err != nil {
		return domain.LocatorPage{}, err
	}
	page := domain.LocatorPage{
		Locators:   make([][32]byte, len(cp.Locators)),
		Scores:     make([]*big.Int, len(cp.Scores)),
		NextCursor: cp.NextCursor,
	}
	for i, l := range cp.Locators {
		raw, err := hexutil.Decode(l)
		if err != nil {
			return domain.LocatorPage{}, fmt.Errorf("locator %d: %w", i, err)
		}
		if len(raw) != 32 {
			return domain.LocatorPage{}, fmt.Errorf("locator %d: %d bytes", i, len(raw))
		}
		copy(page.Locators[i][:], raw)
	}
	for i, s := range cp.Scores {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return domain.LocatorPage{}, fmt.Errorf("score %d: %q is not an integer", i, s)
		}
		page.Scores[i] = n
	}
	return page, nil
}

// Get returns the cached page for key, or domain.ErrNotFound.
func (lc *LocatorCache) Get(ctx context.Context, key string) (domain.LocatorPage, error) {
	b, err := lc.c.rdb.Get(ctx, lc.c.key("locators", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.LocatorPage{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.LocatorPage{}, fmt.Errorf("redis: get locators %s: %w", key, err)
	}
	page, err := decodePage(b)
	if err != nil {
		return domain.LocatorPage{}, fmt.Errorf("redis: decode locators %s: %w", key, err)
	}
	return page, nil
}

// Set stores page under key for ttl.
func (lc *LocatorCache) Set(ctx context.Context, key string, page domain.LocatorPage, ttl time.Duration) error {
	b, err := encodePage(page)
	if err != nil {
		return fmt.Errorf("redis: encode locators %s: %w", key, err)
	}
	if err := lc.c.rdb.Set(ctx, lc.c.key("locators", key), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set locators %s: %w", key, err)
	}
	return nil
}

var _ domain.LocatorCache = (*LocatorCache)(nil)
