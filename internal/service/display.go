package service

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/peerquote/internal/domain"
)

const pricePlaces = 6

// Summary is the human readable view of a winning quote.
type Summary struct {
	Headline string    `json:"headline"`
	Price    string    `json:"price"`
	Expiry   time.Time `json:"expiry,omitzero"`
}

// Summarize renders q the way the user phrased the trade. For a buy the
// signer delivers Of; for a sell the requester delivers Of.
func Summarize(side domain.Side, of, forToken Token, q domain.Quote) Summary {
	signerTok, senderTok := of, forToken
	if side == domain.SideSell {
		signerTok, senderTok = forToken, of
	}
	signerAmt := FromAtomic(q.Signer.Amount, signerTok.Decimals)
	senderAmt := FromAtomic(q.SenderAmount(), senderTok.Decimals)

	var s Summary
	if side == domain.SideBuy {
		s.Headline = fmt.Sprintf("Buy %s %s for %s %s",
			signerAmt.String(), signerTok.Label(), senderAmt.String(), senderTok.Label())
		s.Price = fmt.Sprintf("Price %s %s/%s (%s %s/%s)",
			ratio(signerAmt, senderAmt), signerTok.Label(), senderTok.Label(),
			ratio(senderAmt, signerAmt), senderTok.Label(), signerTok.Label())
	} else {
		s.Headline = fmt.Sprintf("Sell %s %s for %s %s",
			senderAmt.String(), senderTok.Label(), signerAmt.String(), signerTok.Label())
		s.Price = fmt.Sprintf("Price %s %s/%s (%s %s/%s)",
			ratio(senderAmt, signerAmt), senderTok.Label(), signerTok.Label(),
			ratio(signerAmt, senderAmt), signerTok.Label(), senderTok.Label())
	}
	if q.Kind == domain.KindOrder {
		s.Expiry = q.ExpiresAt()
	}
	return s
}

// FromAtomic scales an atomic amount down for display.
func FromAtomic(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

func ratio(num, den decimal.Decimal) string {
	if den.IsZero() {
		return "n/a"
	}
	return num.DivRound(den, pricePlaces).String()
}
