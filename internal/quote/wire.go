package quote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/peerquote/internal/domain"
)

// wireInt accepts an integer encoded either as a JSON string or a bare JSON
// number. Peers disagree on which one to send.
type wireInt string

func (w *wireInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*w = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*w = wireInt(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*w = wireInt(n.String())
	return nil
}

// bigInt parses a non-negative integer in decimal or 0x-prefixed hex.
func (w wireInt) bigInt(field string) (*big.Int, error) {
	s := strings.TrimSpace(string(w))
	if s == "" {
		return nil, fmt.Errorf("%s is missing", field)
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("%s %q is not an integer", field, s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%s %q is negative", field, s)
	}
	return n, nil
}

// optionalBigInt is bigInt with a zero default when the field is absent.
func (w wireInt) optionalBigInt(field string) (*big.Int, error) {
	if strings.TrimSpace(string(w)) == "" {
		return new(big.Int), nil
	}
	return w.bigInt(field)
}

type wireParty struct {
	Kind   string  `json:"kind,omitempty"`
	Wallet string  `json:"wallet,omitempty"`
	Token  string  `json:"token"`
	Amount wireInt `json:"amount"`
	ID     wireInt `json:"id,omitempty"`
}

type wireSignature struct {
	Signatory string  `json:"signatory"`
	Validator string  `json:"validator"`
	Version   string  `json:"version"`
	V         wireInt `json:"v"`
	R         string  `json:"r"`
	S         string  `json:"s"`
}

// wireQuote is the JSON shape of both price quotes and orders. Orders fill
// in every field; price quotes only carry the two parties.
type wireQuote struct {
	Nonce     wireInt        `json:"nonce,omitempty"`
	Expiry    wireInt        `json:"expiry,omitempty"`
	Signer    *wireParty     `json:"signer"`
	Sender    *wireParty     `json:"sender"`
	Affiliate *wireParty     `json:"affiliate,omitempty"`
	Signature *wireSignature `json:"signature,omitempty"`
}

func decodeWire(raw json.RawMessage) (wireQuote, error) {
	var w wireQuote
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return w, fmt.Errorf("empty result")
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return w, fmt.Errorf("decode: %w", err)
	}
	if w.Signer == nil {
		return w, fmt.Errorf("signer is missing")
	}
	if w.Sender == nil {
		return w, fmt.Errorf("sender is missing")
	}
	return w, nil
}

func parseAddress(field, s string, required bool) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if required {
			return common.Address{}, fmt.Errorf("%s is missing", field)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s %q is not an address", field, s)
	}
	return common.HexToAddress(s), nil
}

// toParty converts a wire party. Orders require a wallet; price quotes do not.
func (p *wireParty) toParty(name string, requireWallet bool) (domain.Party, error) {
	if p == nil {
		return domain.Party{}, nil
	}
	wallet, err := parseAddress(name+".wallet", p.Wallet, requireWallet)
	if err != nil {
		return domain.Party{}, err
	}
	token, err := parseAddress(name+".token", p.Token, true)
	if err != nil {
		return domain.Party{}, err
	}
	amount, err := p.Amount.bigInt(name + ".amount")
	if err != nil {
		return domain.Party{}, err
	}
	id, err := p.ID.optionalBigInt(name + ".id")
	if err != nil {
		return domain.Party{}, err
	}

	kind := strings.ToLower(strings.TrimSpace(p.Kind))
	if kind == "" {
		kind = domain.ERC20Kind
	}
	if len(common.FromHex(kind)) != 4 || !strings.HasPrefix(kind, "0x") {
		return domain.Party{}, fmt.Errorf("%s.kind %q is not a bytes4 value", name, p.Kind)
	}

	return domain.Party{
		Kind:   kind,
		Wallet: wallet,
		Token:  token,
		Amount: amount,
		ID:     id,
	}, nil
}

// toAffiliate converts the optional affiliate. An absent affiliate is the
// zero party with an empty kind, which hashes to all zero bytes.
func (p *wireParty) toAffiliate() (domain.Party, error) {
	if p == nil {
		return domain.Party{Amount: new(big.Int), ID: new(big.Int)}, nil
	}
	kind := strings.ToLower(strings.TrimSpace(p.Kind))
	if kind != "" && len(common.FromHex(kind)) != 4 {
		return domain.Party{}, fmt.Errorf("affiliate.kind %q is not a bytes4 value", p.Kind)
	}
	wallet, err := parseAddress("affiliate.wallet", p.Wallet, false)
	if err != nil {
		return domain.Party{}, err
	}
	token, err := parseAddress("affiliate.token", p.Token, false)
	if err != nil {
		return domain.Party{}, err
	}
	amount, err := p.Amount.optionalBigInt("affiliate.amount")
	if err != nil {
		return domain.Party{}, err
	}
	id, err := p.ID.optionalBigInt("affiliate.id")
	if err != nil {
		return domain.Party{}, err
	}
	return domain.Party{Kind: kind, Wallet: wallet, Token: token, Amount: amount, ID: id}, nil
}

func (s *wireSignature) toSignature() (*domain.Signature, error) {
	if s == nil {
		return nil, fmt.Errorf("signature is missing")
	}
	signatory, err := parseAddress("signature.signatory", s.Signatory, true)
	if err != nil {
		return nil, err
	}
	validator, err := parseAddress("signature.validator", s.Validator, true)
	if err != nil {
		return nil, err
	}

	version, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s.Version), "0x"), 16, 8)
	if err != nil {
		return nil, fmt.Errorf("signature.version %q is not a byte", s.Version)
	}
	if byte(version) != domain.SignatureVersionEIP712 && byte(version) != domain.SignatureVersionPersonalSign {
		return nil, fmt.Errorf("signature.version 0x%02x is not supported", version)
	}

	v, err := s.V.bigInt("signature.v")
	if err != nil {
		return nil, err
	}
	if !v.IsUint64() || (v.Uint64() != 27 && v.Uint64() != 28 && v.Uint64() != 0 && v.Uint64() != 1) {
		return nil, fmt.Errorf("signature.v %s is out of range", v)
	}

	out := &domain.Signature{
		Signatory: signatory,
		Validator: validator,
		Version:   byte(version),
		V:         uint8(v.Uint64()),
	}
	if err := parseWord("signature.r", s.R, &out.R); err != nil {
		return nil, err
	}
	if err := parseWord("signature.s", s.S, &out.S); err != nil {
		return nil, err
	}
	return out, nil
}

func parseWord(field, s string, dst *[32]byte) error {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return fmt.Errorf("%s must be 0x-prefixed hex", field)
	}
	b := common.FromHex(s)
	if len(b) != 32 || len(s) != 66 {
		return fmt.Errorf("%s must be 32 bytes", field)
	}
	copy(dst[:], b)
	return nil
}

// parsePriceQuote decodes an unsigned price quote.
func parsePriceQuote(raw json.RawMessage) (domain.Quote, error) {
	w, err := decodeWire(raw)
	if err != nil {
		return domain.Quote{}, err
	}
	signer, err := w.Signer.toParty("signer", false)
	if err != nil {
		return domain.Quote{}, err
	}
	sender, err := w.Sender.toParty("sender", false)
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{
		Kind:   domain.KindQuote,
		Signer: signer,
		Sender: sender,
	}, nil
}

// parseOrder decodes a signed order, requiring every field.
func parseOrder(raw json.RawMessage) (domain.Quote, error) {
	w, err := decodeWire(raw)
	if err != nil {
		return domain.Quote{}, err
	}
	nonce, err := w.Nonce.bigInt("nonce")
	if err != nil {
		return domain.Quote{}, err
	}
	expiry, err := w.Expiry.bigInt("expiry")
	if err != nil {
		return domain.Quote{}, err
	}
	if !expiry.IsInt64() {
		return domain.Quote{}, fmt.Errorf("expiry %s is out of range", expiry)
	}
	signer, err := w.Signer.toParty("signer", true)
	if err != nil {
		return domain.Quote{}, err
	}
	sender, err := w.Sender.toParty("sender", true)
	if err != nil {
		return domain.Quote{}, err
	}
	affiliate, err := w.Affiliate.toAffiliate()
	if err != nil {
		return domain.Quote{}, err
	}
	sig, err := w.Signature.toSignature()
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{
		Kind:      domain.KindOrder,
		Nonce:     nonce,
		Expiry:    expiry.Int64(),
		Signer:    signer,
		Sender:    sender,
		Affiliate: affiliate,
		Signature: sig,
	}, nil
}

// Marshal encodes q in the same JSON shape peers use, with amounts as
// decimal strings.
func Marshal(q domain.Quote) ([]byte, error) {
	w := wireQuote{
		Signer: fromParty(q.Signer),
		Sender: fromParty(q.Sender),
	}
	if q.Kind == domain.KindOrder {
		w.Nonce = wireInt(intString(q.Nonce))
		w.Expiry = wireInt(strconv.FormatInt(q.Expiry, 10))
		w.Affiliate = fromParty(q.Affiliate)
	}
	if q.Signature != nil {
		w.Signature = &wireSignature{
			Signatory: q.Signature.Signatory.Hex(),
			Validator: q.Signature.Validator.Hex(),
			Version:   fmt.Sprintf("0x%02x", q.Signature.Version),
			V:         wireInt(strconv.Itoa(int(q.Signature.V))),
			R:         hexutil.Encode(q.Signature.R[:]),
			S:         hexutil.Encode(q.Signature.S[:]),
		}
	}
	return json.Marshal(w)
}

func fromParty(p domain.Party) *wireParty {
	out := &wireParty{
		Kind:   p.Kind,
		Token:  p.Token.Hex(),
		Amount: wireInt(intString(p.Amount)),
		ID:     wireInt(intString(p.ID)),
	}
	if p.Wallet != (common.Address{}) {
		out.Wallet = p.Wallet.Hex()
	}
	return out
}

func intString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
