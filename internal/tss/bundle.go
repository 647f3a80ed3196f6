package tss

import (
	"encoding/hex"
	"encoding/json"
	"math/big"

	"github.com/bnb-chain/tss-lib/v2/crypto"
	"github.com/bnb-chain/tss-lib/v2/crypto/paillier"
	"github.com/pkg/errors"

	"tss-cli/internal/curves"
	"tss-cli/internal/storage"
)

// PartyKeys are the long-term secrets a party created during keygen.
type PartyKeys struct {
	Secret   *big.Int             `json:"u_i"`
	Public   curves.Point         `json:"y_i"`
	Paillier *paillier.PrivateKey `json:"dk,omitempty"`
	Ordinal  uint16               `json:"party_index"`
}

// SharedKeys are the group key and this party's share of its secret.
type SharedKeys struct {
	GroupKey curves.Point `json:"y"`
	Share    *big.Int     `json:"x_i"`
}

// KeyShareBundle is everything a party keeps after keygen. It is stored as a
// JSON array in a fixed order:
//
//	[party_keys, chain_code, shared_keys, party_ordinal, vss_schemes, paillier_keys, group_key]
//
// paillier_keys is present for ECDSA only. Bundles written before chain
// codes were agreed lack the chain_code element and load with chain code 0.
type KeyShareBundle struct {
	Curve       string `json:"-"`
	SessionUUID string `json:"-"`

	PartyKeys      PartyKeys
	ChainCode      *big.Int
	SharedKeys     SharedKeys
	PartyOrdinal   uint16
	VSS            []VSSScheme
	PaillierKeys   []*paillier.PublicKey
	GroupPublicKey curves.Point
}

func (b *KeyShareBundle) fields(withChainCode bool) []interface{} {
	out := []interface{}{&b.PartyKeys}
	if withChainCode {
		out = append(out, &b.ChainCode)
	}
	out = append(out, &b.SharedKeys, &b.PartyOrdinal, &b.VSS)
	if b.Curve == curves.ECDSA {
		out = append(out, &b.PaillierKeys)
	}
	return append(out, &b.GroupPublicKey)
}

// MarshalJSON writes the array form.
func (b *KeyShareBundle) MarshalJSON() ([]byte, error) {
	if b.Curve == "" {
		return nil, errors.New("bundle curve not set")
	}
	if b.ChainCode == nil {
		b.ChainCode = new(big.Int)
	}
	return json.Marshal(b.fields(true))
}

// DecodeBundle reads a bundle of the given curve.
func DecodeBundle(curveName string, data []byte) (*KeyShareBundle, error) {
	curve, err := curves.ByName(curveName)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "key share bundle")
	}

	b := &KeyShareBundle{Curve: curve.Name}
	full := b.fields(true)
	var fields []interface{}
	switch len(raw) {
	case len(full):
		fields = full
	case len(full) - 1:
		fields = b.fields(false)
	default:
		return nil, errors.Errorf("key share bundle has %d elements, want %d for %s", len(raw), len(full), curve.Name)
	}
	for i, f := range fields {
		if err := json.Unmarshal(raw[i], f); err != nil {
			return nil, errors.Wrapf(err, "key share bundle element %d", i)
		}
	}
	if b.ChainCode == nil {
		b.ChainCode = new(big.Int)
	}
	if err := b.validate(curve); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *KeyShareBundle) validate(curve curves.Curve) error {
	n := len(b.VSS)
	if n < 2 {
		return errors.Errorf("key share bundle holds %d vss schemes", n)
	}
	if b.PartyOrdinal < 1 || int(b.PartyOrdinal) > n {
		return errors.Errorf("party ordinal %d out of range 1..%d", b.PartyOrdinal, n)
	}
	if b.SharedKeys.Share == nil {
		return errors.New("key share bundle has no secret share")
	}
	for i, scheme := range b.VSS {
		if len(scheme.Commitments) != int(b.Threshold())+1 {
			return errors.Errorf("vss scheme %d has %d commitments, want %d", i+1, len(scheme.Commitments), b.Threshold()+1)
		}
	}
	if _, err := curve.Decode(b.GroupPublicKey); err != nil {
		return errors.Wrap(err, "group public key")
	}
	return nil
}

// Threshold is t: any t+1 parties can sign.
func (b *KeyShareBundle) Threshold() uint16 {
	if len(b.VSS) == 0 {
		return 0
	}
	return b.VSS[0].Threshold
}

// Parties is the number of parties that took part in keygen.
func (b *KeyShareBundle) Parties() uint16 { return uint16(len(b.VSS)) }

// GroupKey returns the group public key.
func (b *KeyShareBundle) GroupKey() (*crypto.ECPoint, error) {
	curve, err := curves.ByName(b.Curve)
	if err != nil {
		return nil, err
	}
	return curve.Decode(b.GroupPublicKey)
}

// Record converts the bundle for a storage backend.
func (b *KeyShareBundle) Record() (storage.Record, error) {
	curve, err := curves.ByName(b.Curve)
	if err != nil {
		return storage.Record{}, err
	}
	y, err := curve.Decode(b.GroupPublicKey)
	if err != nil {
		return storage.Record{}, err
	}
	pub, err := curve.Bytes(y)
	if err != nil {
		return storage.Record{}, err
	}
	data, err := json.Marshal(b)
	if err != nil {
		return storage.Record{}, err
	}
	return storage.Record{
		KeyID:        b.SessionUUID,
		Curve:        b.Curve,
		Threshold:    b.Threshold(),
		Parties:      b.Parties(),
		PartyOrdinal: b.PartyOrdinal,
		PublicKey:    hex.EncodeToString(pub),
		Data:         data,
	}, nil
}
