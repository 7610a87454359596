// Package quotetest builds price quotes and signed orders for tests.
package quotetest

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/peerquote/internal/crypto"
	"github.com/alanyoungcy/peerquote/internal/domain"
	"github.com/alanyoungcy/peerquote/internal/quote"
)

// MakerKey is a throwaway development key used to sign fixture orders.
const MakerKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	Swap         = common.HexToAddress("0x3E0c31C3D4067Ed5d7d294F08B79B6003B7bf9c8")
	WETH         = common.HexToAddress("0xc778417E063141139Fce010982780140Aa0cD5Ab")
	DAI          = common.HexToAddress("0x5592EC0cfb4dbc12D3aB100b257153436a1f0FEa")
	SenderWallet = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

// Maker returns the fixture signer.
func Maker(t testing.TB) *crypto.Signer {
	t.Helper()
	s, err := crypto.NewSigner(MakerKey)
	if err != nil {
		t.Fatalf("quotetest: signer: %v", err)
	}
	return s
}

// PriceQuote returns an unsigned quote asking senderAmount DAI for
// signerAmount WETH.
func PriceQuote(signerAmount, senderAmount int64) domain.Quote {
	return domain.Quote{
		Kind: domain.KindQuote,
		Signer: domain.Party{
			Kind: domain.ERC20Kind, Token: WETH, Amount: big.NewInt(signerAmount), ID: new(big.Int),
		},
		Sender: domain.Party{
			Kind: domain.ERC20Kind, Token: DAI, Amount: big.NewInt(senderAmount), ID: new(big.Int),
		},
	}
}

// Order returns an order from the fixture maker, signed with EIP-712 for
// the fixture swap contract and valid for five minutes.
func Order(t testing.TB, signerAmount, senderAmount int64) domain.Quote {
	t.Helper()
	m := Maker(t)
	q := domain.Quote{
		Kind:   domain.KindOrder,
		Nonce:  big.NewInt(time.Now().UnixNano()),
		Expiry: time.Now().Add(5 * time.Minute).Unix(),
		Signer: domain.Party{
			Kind: domain.ERC20Kind, Wallet: m.Address(), Token: WETH,
			Amount: big.NewInt(signerAmount), ID: new(big.Int),
		},
		Sender: domain.Party{
			Kind: domain.ERC20Kind, Wallet: SenderWallet, Token: DAI,
			Amount: big.NewInt(senderAmount), ID: new(big.Int),
		},
		Affiliate: domain.Party{
			Kind: domain.ERC20Kind, Amount: new(big.Int), ID: new(big.Int),
		},
	}
	return Sign(t, q)
}

// Sign (re)signs q with the fixture maker.
func Sign(t testing.TB, q domain.Quote) domain.Quote {
	t.Helper()
	sig, err := Maker(t).SignOrder(q, Swap, domain.SignatureVersionEIP712)
	if err != nil {
		t.Fatalf("quotetest: sign: %v", err)
	}
	q.Signature = &sig
	return q
}

// Raw encodes q the way a peer would return it.
func Raw(t testing.TB, q domain.Quote) json.RawMessage {
	t.Helper()
	b, err := quote.Marshal(q)
	if err != nil {
		t.Fatalf("quotetest: marshal: %v", err)
	}
	return b
}
