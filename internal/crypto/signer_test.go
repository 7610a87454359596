package crypto

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/peerquote/internal/domain"
)

const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var testSwap = common.HexToAddress("0x3E0c31C3D4067Ed5d7d294F08B79B6003B7bf9c8")

func testOrder(signer common.Address) domain.Quote {
	return domain.Quote{
		Kind:   domain.KindOrder,
		Nonce:  big.NewInt(1700000000123),
		Expiry: time.Now().Add(5 * time.Minute).Unix(),
		Signer: domain.Party{
			Kind:   domain.ERC20Kind,
			Wallet: signer,
			Token:  common.HexToAddress("0xc778417E063141139Fce010982780140Aa0cD5Ab"),
			Amount: big.NewInt(1_000_000_000_000_000_000),
			ID:     new(big.Int),
		},
		Sender: domain.Party{
			Kind:   domain.ERC20Kind,
			Wallet: common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
			Token:  common.HexToAddress("0x5592EC0cfb4dbc12D3aB100b257153436a1f0FEa"),
			Amount: big.NewInt(250_000_000),
			ID:     new(big.Int),
		},
	}
}

func TestSignAndVerifyOrder(t *testing.T) {
	s, err := NewSigner(testKey)
	require.NoError(t, err)

	for _, version := range []byte{domain.SignatureVersionEIP712, domain.SignatureVersionPersonalSign} {
		q := testOrder(s.Address())
		sig, err := s.SignOrder(q, testSwap, version)
		require.NoError(t, err)
		q.Signature = &sig

		assert.Equal(t, s.Address(), sig.Signatory)
		assert.Contains(t, []uint8{27, 28}, sig.V)

		recovered, err := RecoverSignatory(q)
		require.NoError(t, err)
		assert.Equal(t, s.Address(), recovered)
		assert.NoError(t, VerifyOrder(q))
	}
}

func TestVerifyOrderRejectsTamperedAmount(t *testing.T) {
	s, err := NewSigner(testKey)
	require.NoError(t, err)

	q := testOrder(s.Address())
	sig, err := s.SignOrder(q, testSwap, domain.SignatureVersionEIP712)
	require.NoError(t, err)
	q.Signature = &sig
	q.Sender.Amount = big.NewInt(1)

	assert.Error(t, VerifyOrder(q))
}

func TestVerifyOrderRejectsForeignSignatory(t *testing.T) {
	s, err := NewSigner(testKey)
	require.NoError(t, err)

	// Signed by s but claims to come from somebody else.
	q := testOrder(common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906"))
	sig, err := s.SignOrder(q, testSwap, domain.SignatureVersionEIP712)
	require.NoError(t, err)
	q.Signature = &sig

	assert.Error(t, VerifyOrder(q))

	sig.Signatory = q.Signer.Wallet
	q.Signature = &sig
	assert.Error(t, VerifyOrder(q))
}

func TestVerifyOrderRejectsWrongValidator(t *testing.T) {
	s, err := NewSigner(testKey)
	require.NoError(t, err)

	q := testOrder(s.Address())
	sig, err := s.SignOrder(q, testSwap, domain.SignatureVersionEIP712)
	require.NoError(t, err)
	sig.Validator = common.HexToAddress("0x0000000000000000000000000000000000000001")
	q.Signature = &sig

	assert.Error(t, VerifyOrder(q))
}

func TestVerifyOrderWithoutSignature(t *testing.T) {
	q := testOrder(common.Address{})
	assert.Error(t, VerifyOrder(q))
}

func TestSignOrderRejectsUnknownVersion(t *testing.T) {
	s, err := NewSigner(testKey)
	require.NoError(t, err)
	_, err = s.SignOrder(testOrder(s.Address()), testSwap, 0x02)
	assert.Error(t, err)
}

func TestOrderHashDependsOnValidator(t *testing.T) {
	q := testOrder(common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906"))
	a, err := OrderHash(q, testSwap)
	require.NoError(t, err)
	b, err := OrderHash(q, common.HexToAddress("0x0000000000000000000000000000000000000001"))
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestBigIntTo32Bytes(t *testing.T) {
	b := bigIntTo32Bytes(big.NewInt(258))
	require.Len(t, b, 32)
	assert.Equal(t, byte(0x01), b[30])
	assert.Equal(t, byte(0x02), b[31])
}
