// Package crypto implements EIP-712 hashing, signing, and signer recovery for
// swap orders returned by quoting peers.
package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/peerquote/internal/domain"
)

// --------------------------------------------------------------------------
// EIP-712 type hashes (pre-computed keccak256 of the canonical type strings).
// --------------------------------------------------------------------------

var (
	// EIP712Domain(string name,string version,address verifyingContract)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,address verifyingContract)"),
	)

	// Order references Party, so the Party type string is appended.
	orderTypeHash = ethcrypto.Keccak256(
		[]byte("Order(uint256 nonce,uint256 expiry,Party signer,Party sender,Party affiliate)" +
			"Party(bytes4 kind,address wallet,address token,uint256 amount,uint256 id)"),
	)

	partyTypeHash = ethcrypto.Keccak256(
		[]byte("Party(bytes4 kind,address wallet,address token,uint256 amount,uint256 id)"),
	)

	domainNameHash    = ethcrypto.Keccak256([]byte("SWAP"))
	domainVersionHash = ethcrypto.Keccak256([]byte("2"))
)

// Signer signs orders on behalf of a maker. The client never signs orders of
// its own; Signer exists so maker fixtures and tests can produce orders that
// Verify accepts.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignOrder signs q for the swap contract at validator and returns the
// signature envelope. version selects typed-data or personal_sign hashing.
func (s *Signer) SignOrder(q domain.Quote, validator common.Address, version byte) (domain.Signature, error) {
	digest, err := signingDigest(q, validator, version)
	if err != nil {
		return domain.Signature{}, err
	}

	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return domain.Signature{}, fmt.Errorf("crypto/signer: signing: %w", err)
	}

	out := domain.Signature{
		Signatory: s.address,
		Validator: validator,
		Version:   version,
		// go-ethereum returns v in {0,1}; the swap contract expects {27,28}.
		V: sig[64] + 27,
	}
	copy(out.R[:], sig[0:32])
	copy(out.S[:], sig[32:64])
	return out, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// domainSeparator returns keccak256(abi.encode(typeHash, nameHash, versionHash, verifyingContract)).
func domainSeparator(verifyingContract common.Address) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			eip712DomainTypeHash,
			domainNameHash,
			domainVersionHash,
			common.LeftPadBytes(verifyingContract.Bytes(), 32),
		),
	)
}

// eip712Hash computes the final EIP-712 digest:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			[]byte{0x19, 0x01},
			domainSep,
			structHash,
		),
	)
}

// signingDigest returns the 32 bytes that were (or must be) signed for the
// given signature version.
func signingDigest(q domain.Quote, validator common.Address, version byte) ([]byte, error) {
	hash, err := OrderHash(q, validator)
	if err != nil {
		return nil, err
	}
	switch version {
	case domain.SignatureVersionEIP712:
		return hash, nil
	case domain.SignatureVersionPersonalSign:
		return ethcrypto.Keccak256(
			[]byte("\x19Ethereum Signed Message:\n32"),
			hash,
		), nil
	default:
		return nil, fmt.Errorf("crypto/signer: unsupported signature version 0x%02x", version)
	}
}

// OrderHash returns the EIP-712 hash of q for the swap contract at validator.
func OrderHash(q domain.Quote, validator common.Address) ([]byte, error) {
	signer, err := partyStructHash(q.Signer)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: signer party: %w", err)
	}
	sender, err := partyStructHash(q.Sender)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: sender party: %w", err)
	}
	affiliate, err := partyStructHash(q.Affiliate)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: affiliate party: %w", err)
	}
	if q.Expiry < 0 {
		return nil, fmt.Errorf("crypto/signer: negative expiry %d", q.Expiry)
	}

	structHash := ethcrypto.Keccak256(
		concatBytes(
			orderTypeHash,
			bigIntTo32Bytes(orZero(q.Nonce)),
			bigIntTo32Bytes(big.NewInt(q.Expiry)),
			signer,
			sender,
			affiliate,
		),
	)
	return eip712Hash(domainSeparator(validator), structHash), nil
}

// partyStructHash encodes and hashes a Party according to EIP-712. An empty
// kind encodes as zero bytes, which is what an absent affiliate looks like.
func partyStructHash(p domain.Party) ([]byte, error) {
	kind := make([]byte, 32)
	if p.Kind != "" {
		raw := common.FromHex(p.Kind)
		if len(raw) != 4 {
			return nil, fmt.Errorf("invalid kind %q", p.Kind)
		}
		copy(kind, raw) // bytes4 is left-aligned
	}
	amount := orZero(p.Amount)
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %s", amount)
	}
	id := orZero(p.ID)
	if id.Sign() < 0 {
		return nil, fmt.Errorf("negative id %s", id)
	}

	return ethcrypto.Keccak256(
		concatBytes(
			partyTypeHash,
			kind,
			common.LeftPadBytes(p.Wallet.Bytes(), 32),
			common.LeftPadBytes(p.Token.Bytes(), 32),
			bigIntTo32Bytes(amount),
			bigIntTo32Bytes(id),
		),
	), nil
}

func orZero(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return n
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
