// Package curves binds the protocol to a concrete elliptic curve from tss-lib.
//
// Every protocol component is written once against Curve: scalars are
// *big.Int reduced mod the group order, points are tss-lib ECPoints and proofs
// are tss-lib Schnorr discrete-log proofs.
package curves

import (
	"crypto/elliptic"
	"fmt"
	"math/big"
	"strings"

	"github.com/bnb-chain/tss-lib/v2/common"
	"github.com/bnb-chain/tss-lib/v2/crypto"
	tsslib "github.com/bnb-chain/tss-lib/v2/tss"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/edwards/v2"
	"github.com/pkg/errors"
)

// Curve names as they travel on the wire and in signup requests.
const (
	ECDSA = "ECDSA"
	EDDSA = "EDDSA"
)

// ScalarLen is the byte length of encoded scalars and coordinates.
const ScalarLen = 32

// Curve is the capability set the protocol needs from a group.
type Curve struct {
	Name string
	EC   elliptic.Curve
}

// ByName resolves ECDSA (secp256k1) or EDDSA (edwards25519).
func ByName(name string) (Curve, error) {
	switch strings.ToUpper(name) {
	case ECDSA:
		return Curve{Name: ECDSA, EC: tsslib.S256()}, nil
	case EDDSA:
		return Curve{Name: EDDSA, EC: tsslib.Edwards()}, nil
	default:
		return Curve{}, fmt.Errorf("unsupported curve %q", name)
	}
}

// Order is the prime order of the group.
func (c Curve) Order() *big.Int {
	return c.EC.Params().N
}

// RandomScalar samples a non-zero scalar.
func (c Curve) RandomScalar() *big.Int {
	for {
		k := common.GetRandomPositiveInt(rand(), c.Order())
		if k != nil && k.Sign() > 0 {
			return k
		}
	}
}

// Reduce maps any integer into [0, q).
func (c Curve) Reduce(k *big.Int) *big.Int {
	return new(big.Int).Mod(k, c.Order())
}

// BaseMult returns k·G.
func (c Curve) BaseMult(k *big.Int) (*crypto.ECPoint, error) {
	p := crypto.ScalarBaseMult(c.EC, c.Reduce(k))
	if p == nil {
		return nil, errors.New("scalar maps to the identity")
	}
	return p, nil
}

// Sum adds a list of points.
func (c Curve) Sum(points ...*crypto.ECPoint) (*crypto.ECPoint, error) {
	if len(points) == 0 {
		return nil, errors.New("empty point sum")
	}
	acc := points[0]
	for _, p := range points[1:] {
		next, err := acc.Add(p)
		if err != nil {
			return nil, errors.Wrap(err, "point addition")
		}
		acc = next
	}
	return acc, nil
}

// ScalarBytes encodes a scalar big-endian, left-padded to ScalarLen.
func ScalarBytes(k *big.Int) []byte {
	return k.FillBytes(make([]byte, ScalarLen))
}

// Bytes is the standard compressed encoding of p: 33 byte SEC1 on
// secp256k1, 32 byte RFC 8032 on edwards25519.
func (c Curve) Bytes(p *crypto.ECPoint) ([]byte, error) {
	if p == nil {
		return nil, errors.New("nil point")
	}
	switch c.Name {
	case ECDSA:
		raw := make([]byte, 1+2*ScalarLen)
		raw[0] = 0x04
		p.X().FillBytes(raw[1 : 1+ScalarLen])
		p.Y().FillBytes(raw[1+ScalarLen:])
		pk, err := btcec.ParsePubKey(raw)
		if err != nil {
			return nil, errors.Wrap(err, "secp256k1 point")
		}
		return pk.SerializeCompressed(), nil
	case EDDSA:
		return edwards.NewPublicKey(p.X(), p.Y()).Serialize(), nil
	default:
		return nil, fmt.Errorf("unsupported curve %q", c.Name)
	}
}

// Point is the wire form of a curve point.
type Point struct {
	X *big.Int `json:"x"`
	Y *big.Int `json:"y"`
}

// Encode converts a point to its wire form.
func Encode(p *crypto.ECPoint) Point {
	return Point{X: p.X(), Y: p.Y()}
}

// EncodeAll converts a list of points.
func EncodeAll(points []*crypto.ECPoint) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Encode(p)
	}
	return out
}

// Decode validates a wire point against the curve.
func (c Curve) Decode(p Point) (*crypto.ECPoint, error) {
	if p.X == nil || p.Y == nil {
		return nil, errors.New("missing point coordinates")
	}
	point, err := crypto.NewECPoint(c.EC, p.X, p.Y)
	if err != nil {
		return nil, errors.Wrapf(err, "point not on %s", c.Name)
	}
	return point, nil
}

// DecodeAll validates a list of wire points.
func (c Curve) DecodeAll(points []Point) ([]*crypto.ECPoint, error) {
	out := make([]*crypto.ECPoint, len(points))
	for i, p := range points {
		decoded, err := c.Decode(p)
		if err != nil {
			return nil, err
		}
		out[i] = decoded
	}
	return out, nil
}
