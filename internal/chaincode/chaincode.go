// Package chaincode agrees on a shared chain code for hierarchical derivation.
//
// Every party commits to a random scalar c_i by broadcasting c_i·G with a
// proof of knowledge, then reveals c_i. The chain code is the sum of all
// revealed scalars mod q. A reveal that does not open its commitment, or a
// proof that does not verify, aborts the agreement.
package chaincode

import (
	"context"
	"math/big"

	"github.com/bnb-chain/tss-lib/v2/crypto"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"tss-cli/internal/curves"
	"tss-cli/internal/logger"
	"tss-cli/internal/network"
	"tss-cli/internal/party"
)

// Relay rounds of the agreement.
const (
	RoundCommit = "round0_chain_code" // c_i·G with a proof of knowledge
	RoundReveal = "round1_chain_code" // c_i
)

// Commitment is the first round message.
type Commitment struct {
	Proof curves.DLogProof `json:"proof"`
}

// Reveal is the second round message.
type Reveal struct {
	Secret *big.Int `json:"secret"`
}

// Agree runs the agreement with a fresh random contribution.
func Agree(ctx context.Context, ex *network.Exchange, curve curves.Curve) (*big.Int, error) {
	return AgreeWithSecret(ctx, ex, curve, curve.RandomScalar())
}

// AgreeWithSecret runs the agreement contributing secret.
func AgreeWithSecret(ctx context.Context, ex *network.Exchange, curve curves.Curve, secret *big.Int) (*big.Int, error) {
	session := ex.SessionUUID()

	proof, err := curve.Prove(curves.ProofTag(session, ex.Self(), RoundCommit), secret)
	if err != nil {
		return nil, errors.Wrap(err, "chain code commitment")
	}
	commitments, err := network.ExchangeBroadcast(ctx, ex, RoundCommit, Commitment{Proof: proof})
	if err != nil {
		return nil, err
	}

	points := party.NewVector[*crypto.ECPoint](ex.Parties())
	var bad *multierror.Error
	err = commitments.Each(func(ordinal uint16, c Commitment) error {
		point, ok := curve.Verify(curves.ProofTag(session, ordinal, RoundCommit), c.Proof)
		if !ok {
			bad = multierror.Append(bad, errors.Wrapf(curves.ErrInvalidProof, "bad proof for chain code from party %d", ordinal))
			return nil
		}
		return points.Set(ordinal, point)
	})
	if err != nil {
		return nil, err
	}
	if err := bad.ErrorOrNil(); err != nil {
		return nil, err
	}

	reveals, err := network.ExchangeBroadcast(ctx, ex, RoundReveal, Reveal{Secret: secret})
	if err != nil {
		return nil, err
	}

	sum := new(big.Int)
	err = reveals.Each(func(ordinal uint16, r Reveal) error {
		if r.Secret == nil {
			return errors.Wrapf(curves.ErrInvalidProof, "missing chain code reveal from party %d", ordinal)
		}
		opened, err := curve.BaseMult(r.Secret)
		if err != nil || !opened.Equals(points.Get(ordinal)) {
			return errors.Wrapf(curves.ErrInvalidProof, "chain code reveal of party %d does not match its commitment", ordinal)
		}
		sum.Add(sum, r.Secret)
		return nil
	})
	if err != nil {
		return nil, err
	}

	chainCode := curve.Reduce(sum)
	logger.Log.Debugf("Chain code agreed among %d parties", ex.Parties())
	return chainCode, nil
}
