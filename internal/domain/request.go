package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Side is the direction of the requested trade from the caller's viewpoint.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide accepts anything starting with "b" or "s" (case-insensitive).
func ParseSide(s string) (Side, error) {
	switch {
	case strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), "B"):
		return SideBuy, nil
	case strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), "S"):
		return SideSell, nil
	default:
		return "", fmt.Errorf("%w: side must be buy or sell, got %q", ErrInvalidRequest, s)
	}
}

// ParseKind maps "order" / "quote" to a QuoteKind.
func ParseKind(s string) (QuoteKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "order":
		return KindOrder, nil
	case "quote", "":
		return KindQuote, nil
	default:
		return 0, fmt.Errorf("%w: kind must be order or quote, got %q", ErrInvalidRequest, s)
	}
}

// RequestParams is the parameter object sent to every peer. Exactly one of
// SignerAmount and SenderAmount is set. SenderWallet is only set for orders.
type RequestParams struct {
	SignerToken  common.Address
	SenderToken  common.Address
	SenderWallet *common.Address
	SignerAmount *big.Int
	SenderAmount *big.Int
}

// MarshalJSON encodes amounts as decimal strings of atomic units.
func (p RequestParams) MarshalJSON() ([]byte, error) {
	out := map[string]string{
		"signerToken": p.SignerToken.Hex(),
		"senderToken": p.SenderToken.Hex(),
	}
	if p.SenderWallet != nil {
		out["senderWallet"] = p.SenderWallet.Hex()
	}
	if p.SignerAmount != nil {
		out["signerAmount"] = p.SignerAmount.String()
	}
	if p.SenderAmount != nil {
		out["senderAmount"] = p.SenderAmount.String()
	}
	return json.Marshal(out)
}

// Request is one user intent, built once and shared read-only by every peer
// call of a round.
type Request struct {
	Side   Side
	Kind   QuoteKind
	Method string
	Params RequestParams
}

// NewRequest builds the peer request for buying or selling amount atomic
// units. For a buy, amount is what the signer must deliver
// (getSenderSide*); for a sell, it is what the sender will pay
// (getSignerSide*). signerToken and senderToken are already oriented.
func NewRequest(
	side Side,
	kind QuoteKind,
	signerToken, senderToken common.Address,
	amount *big.Int,
	senderWallet common.Address,
) (Request, error) {
	if amount == nil || amount.Sign() < 0 {
		return Request{}, fmt.Errorf("%w: amount must be a non-negative integer", ErrInvalidRequest)
	}
	if signerToken == (common.Address{}) || senderToken == (common.Address{}) {
		return Request{}, fmt.Errorf("%w: signer and sender tokens are required", ErrInvalidRequest)
	}

	params := RequestParams{
		SignerToken: signerToken,
		SenderToken: senderToken,
	}
	if kind == KindOrder {
		if senderWallet == (common.Address{}) {
			return Request{}, fmt.Errorf("%w: sender wallet is required for orders", ErrInvalidRequest)
		}
		w := senderWallet
		params.SenderWallet = &w
	}

	var method string
	switch side {
	case SideBuy:
		method = "getSenderSide" + kind.String()
		params.SignerAmount = new(big.Int).Set(amount)
	case SideSell:
		method = "getSignerSide" + kind.String()
		params.SenderAmount = new(big.Int).Set(amount)
	default:
		return Request{}, fmt.Errorf("%w: unknown side %q", ErrInvalidRequest, side)
	}

	return Request{
		Side:   side,
		Kind:   kind,
		Method: method,
		Params: params,
	}, nil
}
