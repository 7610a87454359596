package quote_test

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/peerquote/internal/domain"
	"github.com/alanyoungcy/peerquote/internal/quote"
	"github.com/alanyoungcy/peerquote/internal/quote/quotetest"
)

func TestCheckPriceQuote(t *testing.T) {
	v := quote.NewValidator()
	raw := json.RawMessage(`{
		"signer": {"kind": "0x36372b07", "token": "0xc778417E063141139Fce010982780140Aa0cD5Ab", "amount": "1000000000000000000", "id": "0"},
		"sender": {"token": "0x5592EC0cfb4dbc12D3aB100b257153436a1f0FEa", "amount": 250}
	}`)

	q, err := v.Check(domain.KindQuote, raw)
	require.NoError(t, err)
	assert.Equal(t, domain.KindQuote, q.Kind)
	assert.Equal(t, quotetest.WETH, q.Signer.Token)
	assert.Equal(t, "1000000000000000000", q.Signer.Amount.String())
	assert.Equal(t, "250", q.SenderAmount().String())
	assert.Equal(t, domain.ERC20Kind, q.Sender.Kind)
	assert.Nil(t, q.Signature)
}

func TestCheckPriceQuoteMalformed(t *testing.T) {
	v := quote.NewValidator()
	for name, raw := range map[string]string{
		"null":            `null`,
		"not an object":   `"hello"`,
		"missing sender":  `{"signer": {"token": "0xc778417E063141139Fce010982780140Aa0cD5Ab", "amount": "1"}}`,
		"bad amount":      `{"signer": {"token": "0xc778417E063141139Fce010982780140Aa0cD5Ab", "amount": "1"}, "sender": {"token": "0x5592EC0cfb4dbc12D3aB100b257153436a1f0FEa", "amount": "1.5"}}`,
		"negative amount": `{"signer": {"token": "0xc778417E063141139Fce010982780140Aa0cD5Ab", "amount": "1"}, "sender": {"token": "0x5592EC0cfb4dbc12D3aB100b257153436a1f0FEa", "amount": "-3"}}`,
		"bad token":       `{"signer": {"token": "weth", "amount": "1"}, "sender": {"token": "0x5592EC0cfb4dbc12D3aB100b257153436a1f0FEa", "amount": "1"}}`,
	} {
		_, err := v.Check(domain.KindQuote, json.RawMessage(raw))
		assert.ErrorIs(t, err, domain.ErrMalformedQuote, name)
	}
}

func TestCheckValidOrder(t *testing.T) {
	v := quote.NewValidator(quote.WithSwapContract(quotetest.Swap))
	order := quotetest.Order(t, 1_000, 250)

	q, err := v.Check(domain.KindOrder, quotetest.Raw(t, order))
	require.NoError(t, err)
	assert.Equal(t, domain.KindOrder, q.Kind)
	assert.Equal(t, order.Signer.Wallet, q.Signer.Wallet)
	assert.Equal(t, 0, order.Nonce.Cmp(q.Nonce))
	assert.Equal(t, order.Expiry, q.Expiry)
	require.NotNil(t, q.Signature)
	assert.Equal(t, *order.Signature, *q.Signature)
}

func TestCheckOrderInvalidSignature(t *testing.T) {
	v := quote.NewValidator()
	order := quotetest.Order(t, 1_000, 250)
	order.Signature.S[31] ^= 0x01

	_, err := v.Check(domain.KindOrder, quotetest.Raw(t, order))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	assert.Contains(t, err.Error(), "invalid order or signature")
}

func TestCheckOrderSignedBySomeoneElse(t *testing.T) {
	v := quote.NewValidator()
	order := quotetest.Order(t, 1_000, 250)
	// Claim a different signer after signing.
	order.Signer.Wallet = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	order.Signature.Signatory = order.Signer.Wallet

	_, err := v.Check(domain.KindOrder, quotetest.Raw(t, order))
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestCheckOrderTamperedAmount(t *testing.T) {
	v := quote.NewValidator()
	order := quotetest.Order(t, 1_000, 250)
	order.Sender.Amount = big.NewInt(1)

	_, err := v.Check(domain.KindOrder, quotetest.Raw(t, order))
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestCheckOrderExpired(t *testing.T) {
	later := time.Now().Add(time.Hour)
	v := quote.NewValidator(quote.WithClock(func() time.Time { return later }))

	_, err := v.Check(domain.KindOrder, quotetest.Raw(t, quotetest.Order(t, 1_000, 250)))
	require.ErrorIs(t, err, domain.ErrInvalidOrder)
	assert.Contains(t, err.Error(), "expired")
}

func TestCheckOrderWrongSwapContract(t *testing.T) {
	v := quote.NewValidator(quote.WithSwapContract(common.HexToAddress("0x0000000000000000000000000000000000000042")))

	_, err := v.Check(domain.KindOrder, quotetest.Raw(t, quotetest.Order(t, 1_000, 250)))
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestCheckOrderMissingSignature(t *testing.T) {
	v := quote.NewValidator()
	order := quotetest.Order(t, 1_000, 250)
	order.Signature = nil

	_, err := v.Check(domain.KindOrder, quotetest.Raw(t, order))
	require.ErrorIs(t, err, domain.ErrInvalidOrder)
	assert.Contains(t, err.Error(), "signature is missing")
}

func TestCheckOrderMissingExpiry(t *testing.T) {
	v := quote.NewValidator()
	raw := quotetest.Raw(t, quotetest.Order(t, 1_000, 250))

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	delete(m, "expiry")
	stripped, err := json.Marshal(m)
	require.NoError(t, err)

	_, err = v.Check(domain.KindOrder, stripped)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestCheckOrderNumericFields(t *testing.T) {
	v := quote.NewValidator()
	order := quotetest.Order(t, 1_000, 250)
	raw := quotetest.Raw(t, order)

	// Same order with bare JSON numbers where strings were sent.
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	m["expiry"] = json.Number(big.NewInt(order.Expiry).String())
	m["sender"].(map[string]any)["amount"] = json.Number("250")
	numeric, err := json.Marshal(m)
	require.NoError(t, err)

	_, err = v.Check(domain.KindOrder, numeric)
	assert.NoError(t, err)
}
