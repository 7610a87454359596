// Package quote validates peer responses and ranks the valid ones.
package quote

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/peerquote/internal/crypto"
	"github.com/alanyoungcy/peerquote/internal/domain"
)

// Validator turns a raw peer result into a trusted domain.Quote or an error.
// Price quotes are only decoded; orders must also pass every structural,
// expiry, and signature check.
type Validator struct {
	swap common.Address
	now  func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithSwapContract restricts orders to signatures made for the swap contract
// at addr. The zero address accepts any validator.
func WithSwapContract(addr common.Address) Option {
	return func(v *Validator) { v.swap = addr }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// NewValidator creates a Validator.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Check decodes raw as the requested kind and validates it.
func (v *Validator) Check(kind domain.QuoteKind, raw json.RawMessage) (domain.Quote, error) {
	switch kind {
	case domain.KindQuote:
		q, err := parsePriceQuote(raw)
		if err != nil {
			return domain.Quote{}, fmt.Errorf("quote: %w: %v", domain.ErrMalformedQuote, err)
		}
		return q, nil
	case domain.KindOrder:
		q, err := parseOrder(raw)
		if err != nil {
			return domain.Quote{}, invalidOrder(err)
		}
		if err := v.checkOrder(q); err != nil {
			return domain.Quote{}, invalidOrder(err)
		}
		return q, nil
	default:
		return domain.Quote{}, fmt.Errorf("quote: %w: unknown kind %d", domain.ErrInvalidRequest, kind)
	}
}

func (v *Validator) checkOrder(q domain.Quote) error {
	if q.Expiry < v.now().Unix() {
		return fmt.Errorf("expired at %s", q.ExpiresAt().Format(time.RFC3339))
	}
	if v.swap != (common.Address{}) && q.Signature.Validator != v.swap {
		return fmt.Errorf("signed for %s, not swap contract %s", q.Signature.Validator.Hex(), v.swap.Hex())
	}
	return crypto.VerifyOrder(q)
}

func invalidOrder(cause error) error {
	return fmt.Errorf("quote: %w: %v", domain.ErrInvalidOrder, cause)
}
