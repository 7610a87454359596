package crypto

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/peerquote/internal/domain"
)

var errNoSignature = errors.New("crypto: order has no signature")

// RecoverSignatory returns the address that produced the order's signature.
func RecoverSignatory(q domain.Quote) (common.Address, error) {
	if q.Signature == nil {
		return common.Address{}, errNoSignature
	}
	sig := q.Signature

	digest, err := signingDigest(q, sig.Validator, sig.Version)
	if err != nil {
		return common.Address{}, err
	}

	v := sig.V
	if v >= 27 {
		v -= 27
	}
	r := new(big.Int).SetBytes(sig.R[:])
	s := new(big.Int).SetBytes(sig.S[:])
	if !ethcrypto.ValidateSignatureValues(v, r, s, true) {
		return common.Address{}, fmt.Errorf("crypto: signature values out of range")
	}

	raw := make([]byte, 65)
	copy(raw[0:32], sig.R[:])
	copy(raw[32:64], sig.S[:])
	raw[64] = v

	pub, err := ethcrypto.SigToPub(digest, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: recover public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifyOrder checks that the order's signature was produced by its stated
// signatory and that the signatory is the signer wallet.
func VerifyOrder(q domain.Quote) error {
	if q.Signature == nil {
		return errNoSignature
	}
	if q.Signature.Signatory != q.Signer.Wallet {
		return fmt.Errorf("crypto: signatory %s is not signer wallet %s",
			q.Signature.Signatory.Hex(), q.Signer.Wallet.Hex())
	}
	recovered, err := RecoverSignatory(q)
	if err != nil {
		return err
	}
	if recovered != q.Signature.Signatory {
		return fmt.Errorf("crypto: signature recovers to %s, want %s",
			recovered.Hex(), q.Signature.Signatory.Hex())
	}
	return nil
}
