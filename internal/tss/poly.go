package tss

import (
	"math/big"

	"github.com/bnb-chain/tss-lib/v2/crypto"
	"github.com/pkg/errors"

	"tss-cli/internal/curves"
)

// combine adds the dealers' commitments coefficient-wise. The result commits
// to the polynomial whose value at 0 is the group secret.
func combine(curve curves.Curve, schemes [][]*crypto.ECPoint) ([]*crypto.ECPoint, error) {
	if len(schemes) == 0 {
		return nil, errors.New("no vss schemes")
	}
	out := make([]*crypto.ECPoint, len(schemes[0]))
	for m := range out {
		column := make([]*crypto.ECPoint, len(schemes))
		for k, scheme := range schemes {
			if len(scheme) != len(out) {
				return nil, errors.Wrapf(ErrInvalidVSS, "scheme %d has %d commitments, want %d", k+1, len(scheme), len(out))
			}
			column[k] = scheme[m]
		}
		sum, err := curve.Sum(column...)
		if err != nil {
			return nil, err
		}
		out[m] = sum
	}
	return out, nil
}

// evaluate returns Σ C_m·x^m, the public image of the committed polynomial at x.
func evaluate(commitments []*crypto.ECPoint, x *big.Int) (*crypto.ECPoint, error) {
	acc := commitments[len(commitments)-1]
	for m := len(commitments) - 2; m >= 0; m-- {
		next, err := acc.ScalarMult(x).Add(commitments[m])
		if err != nil {
			return nil, errors.Wrap(err, "commitment evaluation")
		}
		acc = next
	}
	return acc, nil
}

// decodeSchemes validates every dealer's commitments.
func decodeSchemes(curve curves.Curve, threshold uint16, schemes []VSSScheme) ([][]*crypto.ECPoint, error) {
	out := make([][]*crypto.ECPoint, len(schemes))
	for i, scheme := range schemes {
		if len(scheme.Commitments) != int(threshold)+1 {
			return nil, errors.Wrapf(ErrInvalidVSS, "party %d committed to %d coefficients, want %d", i+1, len(scheme.Commitments), threshold+1)
		}
		points, err := curve.DecodeAll(scheme.Commitments)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidVSS, "party %d: %v", i+1, err)
		}
		out[i] = points
	}
	return out, nil
}

// publicShares returns X_j = x_j·G for every key ordinal 1..n.
func publicShares(curve curves.Curve, threshold uint16, schemes []VSSScheme) ([]*crypto.ECPoint, error) {
	decoded, err := decodeSchemes(curve, threshold, schemes)
	if err != nil {
		return nil, err
	}
	group, err := combine(curve, decoded)
	if err != nil {
		return nil, err
	}
	out := make([]*crypto.ECPoint, len(schemes))
	for j := range out {
		if out[j], err = evaluate(group, big.NewInt(int64(j+1))); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// lagrange is the coefficient of key ordinal i when interpolating at 0 over set.
func lagrange(curve curves.Curve, i uint16, set []uint16) *big.Int {
	q := curve.Order()
	num := big.NewInt(1)
	den := big.NewInt(1)
	xi := big.NewInt(int64(i))
	for _, j := range set {
		if j == i {
			continue
		}
		xj := big.NewInt(int64(j))
		num.Mul(num, xj)
		num.Mod(num, q)
		den.Mul(den, new(big.Int).Sub(xj, xi))
		den.Mod(den, q)
	}
	return num.Mul(num, den.ModInverse(den, q)).Mod(num, q)
}
