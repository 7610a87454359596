package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/peerquote/internal/domain"
	"github.com/alanyoungcy/peerquote/internal/quote/quotetest"
)

var (
	weth = Token{Address: quotetest.WETH, Symbol: "WETH", Decimals: 18}
	dai  = Token{Address: quotetest.DAI, Symbol: "DAI", Decimals: 18}
	usdc = Token{Address: quotetest.DAI, Symbol: "USDC", Decimals: 6}
)

func TestBuildRequestBuy(t *testing.T) {
	req, err := BuildRequest(Intent{Side: "B", Kind: "Quote", Amount: "1.5", Of: weth, For: dai})
	require.NoError(t, err)

	assert.Equal(t, domain.SideBuy, req.Side)
	assert.Equal(t, domain.KindQuote, req.Kind)
	assert.Equal(t, "getSenderSideQuote", req.Method)
	assert.Equal(t, weth.Address, req.Params.SignerToken)
	assert.Equal(t, dai.Address, req.Params.SenderToken)
	require.NotNil(t, req.Params.SignerAmount)
	assert.Equal(t, "1500000000000000000", req.Params.SignerAmount.String())
	assert.Nil(t, req.Params.SenderAmount)
	assert.Nil(t, req.Params.SenderWallet)
}

func TestBuildRequestSellOrder(t *testing.T) {
	req, err := BuildRequest(Intent{
		Side: "sell", Kind: "order", Amount: "250.1234567",
		Of: usdc, For: weth, SenderWallet: quotetest.SenderWallet,
	})
	require.NoError(t, err)

	assert.Equal(t, "getSignerSideOrder", req.Method)
	assert.Equal(t, weth.Address, req.Params.SignerToken)
	assert.Equal(t, usdc.Address, req.Params.SenderToken)
	require.NotNil(t, req.Params.SenderAmount)
	// Floored to six decimals.
	assert.Equal(t, "250123456", req.Params.SenderAmount.String())
	require.NotNil(t, req.Params.SenderWallet)
	assert.Equal(t, quotetest.SenderWallet, *req.Params.SenderWallet)
}

func TestBuildRequestRejectsBadInput(t *testing.T) {
	cases := map[string]Intent{
		"non-numeric": {Side: "B", Amount: "lots", Of: weth, For: dai},
		"negative":    {Side: "B", Amount: "-1", Of: weth, For: dai},
		"bad side":    {Side: "hold", Amount: "1", Of: weth, For: dai},
		"bad kind":    {Side: "B", Kind: "swap", Amount: "1", Of: weth, For: dai},
		"no wallet":   {Side: "B", Kind: "order", Amount: "1", Of: weth, For: dai},
		"no token":    {Side: "B", Amount: "1", Of: weth},
	}
	for name, in := range cases {
		_, err := BuildRequest(in)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest, name)
	}
}

func TestToAtomic(t *testing.T) {
	cases := []struct {
		amount   string
		decimals int32
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"0.000000000000000001", 18, "1"},
		{"0.0000000000000000019", 18, "1"},
		{"12.345", 2, "1234"},
		{"0", 6, "0"},
		{"  7 ", 0, "7"},
	}
	for _, c := range cases {
		got, err := ToAtomic(c.amount, c.decimals)
		require.NoError(t, err, c.amount)
		assert.Equal(t, c.want, got.BigInt().String(), c.amount)
	}

	_, err := ToAtomic("1", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
