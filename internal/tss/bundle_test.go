package tss

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/bnb-chain/tss-lib/v2/crypto/paillier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tss-cli/internal/curves"
)

func sampleBundle(t *testing.T, curveName string) *KeyShareBundle {
	curve, err := curves.ByName(curveName)
	require.NoError(t, err)

	point := func(k int64) curves.Point {
		p, err := curve.BaseMult(big.NewInt(k))
		require.NoError(t, err)
		return curves.Encode(p)
	}
	b := &KeyShareBundle{
		Curve:        curve.Name,
		SessionUUID:  "6f1c1a52-54a6-4c0c-9d35-3f8b3a0d1e77",
		PartyKeys:    PartyKeys{Secret: big.NewInt(11), Public: point(11), Ordinal: 2},
		ChainCode:    big.NewInt(77),
		SharedKeys:   SharedKeys{GroupKey: point(5), Share: big.NewInt(42)},
		PartyOrdinal: 2,
		VSS: []VSSScheme{
			{Threshold: 1, ShareCount: 2, Commitments: []curves.Point{point(2), point(3)}},
			{Threshold: 1, ShareCount: 2, Commitments: []curves.Point{point(3), point(4)}},
		},
		GroupPublicKey: point(5),
	}
	if curve.Name == curves.ECDSA {
		b.PaillierKeys = []*paillier.PublicKey{{N: big.NewInt(77)}, {N: big.NewInt(91)}}
	}
	return b
}

func TestBundle_ArrayLayout(t *testing.T) {
	for name, want := range map[string]int{curves.ECDSA: 7, curves.EDDSA: 6} {
		raw, err := json.Marshal(sampleBundle(t, name))
		require.NoError(t, err)

		var elements []json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &elements))
		assert.Len(t, elements, want, name)
		assert.Equal(t, "77", string(elements[1]), name)
		assert.Equal(t, "2", string(elements[3]), name)
	}
}

func TestBundle_Decode(t *testing.T) {
	b := sampleBundle(t, curves.ECDSA)
	raw, err := json.Marshal(b)
	require.NoError(t, err)

	got, err := DecodeBundle("ecdsa", raw)
	require.NoError(t, err)
	assert.Equal(t, curves.ECDSA, got.Curve)
	assert.Equal(t, uint16(2), got.PartyOrdinal)
	assert.Equal(t, uint16(1), got.Threshold())
	assert.Equal(t, uint16(2), got.Parties())
	assert.Equal(t, 0, got.ChainCode.Cmp(big.NewInt(77)))
	require.Len(t, got.PaillierKeys, 2)
	assert.Equal(t, 0, got.PaillierKeys[1].N.Cmp(big.NewInt(91)))
}

func TestBundle_LegacyWithoutChainCode(t *testing.T) {
	raw, err := json.Marshal(sampleBundle(t, curves.EDDSA))
	require.NoError(t, err)

	var elements []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &elements))
	legacy, err := json.Marshal(append(elements[:1:1], elements[2:]...))
	require.NoError(t, err)

	got, err := DecodeBundle(curves.EDDSA, legacy)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ChainCode.Sign())
	assert.Equal(t, 0, got.SharedKeys.Share.Cmp(big.NewInt(42)))
}

func TestBundle_DecodeErrors(t *testing.T) {
	raw, err := json.Marshal(sampleBundle(t, curves.EDDSA))
	require.NoError(t, err)

	_, err = DecodeBundle(curves.ECDSA, []byte(`[1,2,3]`))
	assert.Error(t, err)
	_, err = DecodeBundle("bls", raw)
	assert.Error(t, err)
	_, err = DecodeBundle(curves.EDDSA, []byte(`{}`))
	assert.Error(t, err)

	b := sampleBundle(t, curves.EDDSA)
	b.PartyOrdinal = 3
	raw, err = json.Marshal(b)
	require.NoError(t, err)
	_, err = DecodeBundle(curves.EDDSA, raw)
	assert.Error(t, err)
}

func TestBundle_Record(t *testing.T) {
	b := sampleBundle(t, curves.EDDSA)
	rec, err := b.Record()
	require.NoError(t, err)

	assert.Equal(t, b.SessionUUID, rec.KeyID)
	assert.Equal(t, uint16(2), rec.PartyOrdinal)
	assert.Equal(t, uint16(1), rec.Threshold)
	assert.Equal(t, uint16(2), rec.Parties)
	assert.Len(t, rec.PublicKey, 64)

	got, err := DecodeBundle(curves.EDDSA, rec.Data)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SharedKeys.Share.Cmp(b.SharedKeys.Share))
}
