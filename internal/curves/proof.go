package curves

import (
	cryptorand "crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/bnb-chain/tss-lib/v2/crypto"
	"github.com/bnb-chain/tss-lib/v2/crypto/schnorr"
	"github.com/pkg/errors"
)

// ErrInvalidProof is returned when a peer's proof of knowledge does not verify.
var ErrInvalidProof = errors.New("invalid proof")

func rand() io.Reader { return cryptorand.Reader }

// Rand is the randomness source handed to tss-lib primitives.
func Rand() io.Reader { return rand() }

// DLogProof proves knowledge of the scalar behind PublicPoint.
type DLogProof struct {
	PublicPoint Point    `json:"pk"`
	Alpha       Point    `json:"alpha"`
	T           *big.Int `json:"t"`
}

// ProofTag is the Schnorr session tag of one prover in one round.
func ProofTag(session string, prover uint16, round string) []byte {
	return []byte(fmt.Sprintf("%s/%d/%s", session, prover, round))
}

// Prove creates a Schnorr proof of knowledge of x bound to the session tag.
func (c Curve) Prove(tag []byte, x *big.Int) (DLogProof, error) {
	X, err := c.BaseMult(x)
	if err != nil {
		return DLogProof{}, err
	}
	pf, err := schnorr.NewZKProof(tag, c.Reduce(x), X, rand())
	if err != nil {
		return DLogProof{}, errors.Wrap(err, "dlog proof")
	}
	return DLogProof{PublicPoint: Encode(X), Alpha: Encode(pf.Alpha), T: pf.T}, nil
}

// Verify checks a proof under the same session tag and returns the proven point.
func (c Curve) Verify(tag []byte, proof DLogProof) (*crypto.ECPoint, bool) {
	X, err := c.Decode(proof.PublicPoint)
	if err != nil {
		return nil, false
	}
	alpha, err := c.Decode(proof.Alpha)
	if err != nil || proof.T == nil {
		return nil, false
	}
	pf := &schnorr.ZKProof{Alpha: alpha, T: proof.T}
	if !pf.Verify(tag, X) {
		return nil, false
	}
	return X, true
}
