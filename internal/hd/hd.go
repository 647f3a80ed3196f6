// Package hd derives non-hardened child keys from a threshold group key.
//
// Only public data is involved: a child key is root + offset·G, and signers
// holding shares of the root key add the offset when they finish a signature.
// Each step computes I = HMAC-SHA512(key = enc(C), data = enc(P) || index),
// where C is the chain code point and P the current public key. The left half
// of I extends the offset, the right half becomes the next chain code.
package hd

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"math/big"
	"strconv"
	"strings"

	"github.com/bnb-chain/tss-lib/v2/crypto"
	"github.com/pkg/errors"

	"tss-cli/internal/curves"
)

// ParsePath reads a derivation path such as "m/0/7" or "0/7".
func ParsePath(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "m")
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, nil
	}
	parts := strings.Split(path, "/")
	out := make([]uint32, len(parts))
	for i, part := range parts {
		if strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h") {
			return nil, errors.Errorf("hardened index %q cannot be derived from a public key", part)
		}
		idx, err := strconv.ParseUint(part, 10, 31)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid path element %q", part)
		}
		out[i] = uint32(idx)
	}
	return out, nil
}

// DeriveChild walks path from root. It returns the child public key and the
// scalar offset such that child = root + offset·G. An empty path yields root
// and a zero offset.
func DeriveChild(curve curves.Curve, root *crypto.ECPoint, chainCode *big.Int, path string) (*crypto.ECPoint, *big.Int, error) {
	indexes, err := ParsePath(path)
	if err != nil {
		return nil, nil, err
	}
	offset := new(big.Int)
	if len(indexes) == 0 {
		return root, offset, nil
	}

	key, err := chainKey(curve, chainCode)
	if err != nil {
		return nil, nil, err
	}
	pub := root
	for _, idx := range indexes {
		data, err := curve.Bytes(pub)
		if err != nil {
			return nil, nil, err
		}
		var index [4]byte
		binary.BigEndian.PutUint32(index[:], idx)

		mac := hmac.New(sha512.New, key)
		mac.Write(data)
		mac.Write(index[:])
		sum := mac.Sum(nil)

		il := curve.Reduce(new(big.Int).SetBytes(sum[:32]))
		ir := curve.Reduce(new(big.Int).SetBytes(sum[32:]))

		step, err := curve.BaseMult(il)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "index %d", idx)
		}
		if pub, err = pub.Add(step); err != nil {
			return nil, nil, errors.Wrapf(err, "index %d", idx)
		}
		offset = curve.Reduce(offset.Add(offset, il))

		if key, err = chainKey(curve, ir); err != nil {
			return nil, nil, err
		}
	}
	return pub, offset, nil
}

// chainKey is the HMAC key for a chain code scalar. A zero chain code, as
// found in bundles written before chain codes were agreed, maps to an all
// zero key.
func chainKey(curve curves.Curve, chainCode *big.Int) ([]byte, error) {
	if chainCode == nil || curve.Reduce(chainCode).Sign() == 0 {
		return make([]byte, curves.ScalarLen), nil
	}
	point, err := curve.BaseMult(chainCode)
	if err != nil {
		return nil, err
	}
	return curve.Bytes(point)
}
