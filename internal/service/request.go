package service

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/peerquote/internal/domain"
)

// maxDecimals bounds token decimals; ERC-20 decimals is a uint8.
const maxDecimals = 255

// Token describes one asset of a trade for request building and display.
type Token struct {
	Address  common.Address
	Symbol   string
	Decimals int32
}

// Label returns the symbol, or the address when no symbol is known.
func (t Token) Label() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

// Intent is a trade as the user states it: buy or sell Amount of Of, paid
// for with (or in exchange for) For.
type Intent struct {
	Side         string
	Kind         string
	Amount       string
	Of           Token
	For          Token
	SenderWallet common.Address
}

// BuildRequest turns an intent into the immutable peer request. The amount
// is scaled by the decimals of the Of token and floored to atomic units.
func BuildRequest(in Intent) (domain.Request, error) {
	side, err := domain.ParseSide(in.Side)
	if err != nil {
		return domain.Request{}, fmt.Errorf("service: build request: %w", err)
	}
	kind, err := domain.ParseKind(in.Kind)
	if err != nil {
		return domain.Request{}, fmt.Errorf("service: build request: %w", err)
	}

	atomic, err := ToAtomic(in.Amount, in.Of.Decimals)
	if err != nil {
		return domain.Request{}, fmt.Errorf("service: build request: %w", err)
	}

	signerToken, senderToken := in.Of.Address, in.For.Address
	if side == domain.SideSell {
		signerToken, senderToken = in.For.Address, in.Of.Address
	}

	req, err := domain.NewRequest(side, kind, signerToken, senderToken, atomic.BigInt(), in.SenderWallet)
	if err != nil {
		return domain.Request{}, fmt.Errorf("service: build request: %w", err)
	}
	return req, nil
}

// ToAtomic converts a human decimal amount into atomic units, rounding down.
func ToAtomic(amount string, decimals int32) (decimal.Decimal, error) {
	if decimals < 0 || decimals > maxDecimals {
		return decimal.Decimal{}, fmt.Errorf("%w: decimals %d out of range", domain.ErrInvalidRequest, decimals)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q is not a number", domain.ErrInvalidRequest, amount)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q is negative", domain.ErrInvalidRequest, amount)
	}
	return d.Shift(decimals).Floor(), nil
}
