package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// QuoteKind selects which flavour of response a peer is asked for. Price
// quotes are indicative and unsigned; orders are signed and executable.
type QuoteKind int

const (
	KindQuote QuoteKind = iota
	KindOrder
)

// String returns the suffix used in peer method names ("Quote" or "Order").
func (k QuoteKind) String() string {
	if k == KindOrder {
		return "Order"
	}
	return "Quote"
}

// ERC20Kind is the ERC-165 interface id peers use for fungible token parties.
const ERC20Kind = "0x36372b07"

// Signature versions accepted on orders.
const (
	SignatureVersionEIP712       byte = 0x01
	SignatureVersionPersonalSign byte = 0x45
)

// Party is one side of a quote: who delivers how much of which token.
type Party struct {
	Kind   string // bytes4 interface id, hex encoded
	Wallet common.Address
	Token  common.Address
	Amount *big.Int // atomic units
	ID     *big.Int // token id for non-fungible kinds, zero otherwise
}

// Signature is the signature envelope attached to an order.
type Signature struct {
	Signatory common.Address
	Validator common.Address
	Version   byte
	V         uint8
	R         [32]byte
	S         [32]byte
}

// Quote is an offer from a peer: the signer delivers Signer.Amount of
// Signer.Token and requires Sender.Amount of Sender.Token in return.
// Quotes are never mutated after they are decoded.
type Quote struct {
	Kind      QuoteKind
	Nonce     *big.Int
	Expiry    int64 // unix seconds, zero for price quotes
	Signer    Party
	Sender    Party
	Affiliate Party
	Signature *Signature // nil for price quotes
}

// ExpiresAt returns the expiry as a time.Time.
func (q Quote) ExpiresAt() time.Time {
	return time.Unix(q.Expiry, 0).UTC()
}

// SenderAmount is the amount the requester would have to pay.
func (q Quote) SenderAmount() *big.Int {
	if q.Sender.Amount == nil {
		return new(big.Int)
	}
	return q.Sender.Amount
}
