// Package tss runs threshold key generation and signing over the relay.
package tss

import (
	"context"
	"math/big"
	"time"

	"github.com/bnb-chain/tss-lib/v2/crypto"
	"github.com/bnb-chain/tss-lib/v2/crypto/commitments"
	"github.com/bnb-chain/tss-lib/v2/crypto/paillier"
	"github.com/bnb-chain/tss-lib/v2/crypto/vss"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"tss-cli/internal/chaincode"
	"tss-cli/internal/curves"
	"tss-cli/internal/logger"
	"tss-cli/internal/network"
	"tss-cli/internal/party"
	"tss-cli/internal/secure"
	"tss-cli/internal/session"
	"tss-cli/internal/storage"
)

// DefaultPaillierBits is the modulus size of ECDSA Paillier keys.
const DefaultPaillierBits = 2048

// Options tune the protocol timing and key sizes.
type Options struct {
	PollDelay     time.Duration
	PollTimeout   time.Duration
	SignupTimeout time.Duration
	PaillierBits  int
}

// Keygen runs distributed key generation for one party.
type Keygen struct {
	client    *network.Client
	curve     curves.Curve
	threshold uint16
	parties   uint16
	store     storage.Store
	opts      Options
}

// NewKeygen prepares a t-of-n keygen; any t+1 of the n parties can sign with
// the result. A nil store skips persistence.
func NewKeygen(client *network.Client, curve curves.Curve, threshold, parties uint16, store storage.Store, opts Options) (*Keygen, error) {
	if threshold < 1 || threshold >= parties {
		return nil, errors.Errorf("invalid cohort: need 1 <= threshold < parties, got threshold %d, parties %d", threshold, parties)
	}
	if opts.PaillierBits == 0 {
		opts.PaillierBits = DefaultPaillierBits
	}
	return &Keygen{
		client:    client,
		curve:     curve,
		threshold: threshold,
		parties:   parties,
		store:     store,
		opts:      opts,
	}, nil
}

// Run signs up with the relay, runs every keygen round and persists the result.
func (k *Keygen) Run(ctx context.Context) (*KeyShareBundle, error) {
	logger.Log.Info("--- Phase 1: Signup ---")
	assignment, err := session.NewNegotiator(k.client, k.opts.SignupTimeout).SignupKeygen(ctx, k.threshold, k.parties, k.curve.Name)
	if err != nil {
		return nil, errors.Wrap(err, "keygen signup")
	}
	ex := network.NewExchange(k.client, assignment, k.parties, k.opts.PollDelay, k.opts.PollTimeout)

	bundle, err := k.RunSession(ctx, ex)
	if err != nil {
		return nil, err
	}

	if k.store != nil {
		logger.Log.Info("--- Phase 8: Persist ---")
		rec, err := bundle.Record()
		if err != nil {
			return nil, err
		}
		if err := k.store.SaveKeyShare(ctx, rec); err != nil {
			return nil, errors.Wrap(err, "persist key share")
		}
	}
	return bundle, nil
}

// RunSession runs the keygen rounds on an already negotiated exchange.
func (k *Keygen) RunSession(ctx context.Context, ex *network.Exchange) (*KeyShareBundle, error) {
	curve := k.curve
	self := ex.Self()
	n := ex.Parties()
	t := k.threshold
	logger.Log.Infof("Keygen session %s: party %d of %d, threshold %d, curve %s", ex.SessionUUID(), self, n, t, curve.Name)

	// 1. --- Init: chain code and long-term key ---
	logger.Log.Info("--- Phase 2: Chain code ---")
	chainCode, err := chaincode.Agree(ctx, ex, curve)
	if err != nil {
		return nil, errors.Wrap(err, "chain code")
	}

	u := curve.RandomScalar()
	y, err := curve.BaseMult(u)
	if err != nil {
		return nil, err
	}
	var dk *paillier.PrivateKey
	var ek *paillier.PublicKey
	if curve.Name == curves.ECDSA {
		if dk, ek, err = paillier.GenerateKeyPair(ctx, curves.Rand(), k.opts.PaillierBits); err != nil {
			return nil, errors.Wrap(err, "paillier key")
		}
	}

	// 2. --- Commit ---
	logger.Log.Info("--- Phase 3: Commit ---")
	cmt := commitments.NewHashCommitment(curves.Rand(), y.X(), y.Y())
	coms, err := network.ExchangeBroadcast(ctx, ex, RoundCommit, KeygenCommitment{Commitment: cmt.C, Paillier: ek})
	if err != nil {
		return nil, err
	}

	// 3. --- Decommit and verify ---
	logger.Log.Info("--- Phase 4: Decommit ---")
	decoms, err := network.ExchangeBroadcast(ctx, ex, RoundDecommit, Decommitment{D: cmt.D})
	if err != nil {
		return nil, err
	}
	points, err := party.Map(decoms, func(j uint16, d Decommitment) (*crypto.ECPoint, error) {
		return k.open(coms.Get(j), d, j)
	})
	if err != nil {
		return nil, err
	}
	groupKey, err := curve.Sum(points.Slice()...)
	if err != nil {
		return nil, err
	}

	// 4. --- Share distribution ---
	logger.Log.Info("--- Phase 5: Shares ---")
	indexes := make([]*big.Int, n)
	for i := range indexes {
		indexes[i] = big.NewInt(int64(i + 1))
	}
	vs, shares, err := vss.Create(curve.EC, int(t), u, indexes, curves.Rand())
	if err != nil {
		return nil, errors.Wrap(err, "vss sharing")
	}
	sealed, err := network.ExchangeP2P(ctx, ex, RoundShares, func(to uint16) (secure.AEAD, error) {
		key, err := secure.DeriveKey(u, points.Get(to))
		if err != nil {
			return secure.AEAD{}, err
		}
		return secure.Seal(key, curves.ScalarBytes(shares[to-1].Share))
	})
	if err != nil {
		return nil, err
	}
	received := party.NewVector[*big.Int](n)
	if err := received.Set(self, shares[self-1].Share); err != nil {
		return nil, err
	}
	for _, from := range party.Peers(self, n) {
		key, err := secure.DeriveKey(u, points.Get(from))
		if err != nil {
			return nil, err
		}
		plain, err := secure.Open(key, sealed.Get(from))
		if err != nil {
			return nil, errors.Wrapf(err, "share from party %d", from)
		}
		if err := received.Set(from, new(big.Int).SetBytes(plain)); err != nil {
			return nil, err
		}
	}

	// 5. --- VSS broadcast ---
	logger.Log.Info("--- Phase 6: VSS ---")
	schemes, err := network.ExchangeBroadcast(ctx, ex, RoundVSS, VSSScheme{
		Threshold:   t,
		ShareCount:  n,
		Commitments: curves.EncodeAll(vs),
	})
	if err != nil {
		return nil, err
	}
	decoded, err := decodeSchemes(curve, t, schemes.Slice())
	if err != nil {
		return nil, err
	}

	// 6. --- Reconstruct and verify ---
	share := new(big.Int)
	var bad *multierror.Error
	err = received.Each(func(j uint16, s *big.Int) error {
		commits := decoded[j-1]
		if !commits[0].Equals(points.Get(j)) {
			bad = multierror.Append(bad, errors.Wrapf(ErrInvalidVSS, "party %d shared a secret other than its committed key", j))
			return nil
		}
		vshare := &vss.Share{Threshold: int(t), ID: big.NewInt(int64(self)), Share: s}
		if !vshare.Verify(curve.EC, int(t), commits) {
			bad = multierror.Append(bad, errors.Wrapf(ErrInvalidVSS, "share from party %d does not match its commitments", j))
			return nil
		}
		share.Add(share, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := bad.ErrorOrNil(); err != nil {
		return nil, errors.Wrap(err, "invalid vss")
	}
	share = curve.Reduce(share)

	// 7. --- Proof of share ---
	logger.Log.Info("--- Phase 7: Proof ---")
	proof, err := curve.Prove(curves.ProofTag(ex.SessionUUID(), self, RoundProof), share)
	if err != nil {
		return nil, err
	}
	proofs, err := network.ExchangeBroadcast(ctx, ex, RoundProof, proof)
	if err != nil {
		return nil, err
	}
	expected, err := publicShares(curve, t, schemes.Slice())
	if err != nil {
		return nil, err
	}
	bad = nil
	err = proofs.Each(func(j uint16, p curves.DLogProof) error {
		point, ok := curve.Verify(curves.ProofTag(ex.SessionUUID(), j, RoundProof), p)
		if !ok || !point.Equals(expected[j-1]) {
			bad = multierror.Append(bad, errors.Wrapf(ErrInvalidProof, "bad dlog proof from party %d", j))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := bad.ErrorOrNil(); err != nil {
		return nil, err
	}

	bundle := &KeyShareBundle{
		Curve:       curve.Name,
		SessionUUID: ex.SessionUUID(),
		PartyKeys: PartyKeys{
			Secret:   u,
			Public:   curves.Encode(y),
			Paillier: dk,
			Ordinal:  self,
		},
		ChainCode: chainCode,
		SharedKeys: SharedKeys{
			GroupKey: curves.Encode(groupKey),
			Share:    share,
		},
		PartyOrdinal:   self,
		VSS:            schemes.Slice(),
		GroupPublicKey: curves.Encode(groupKey),
	}
	if curve.Name == curves.ECDSA {
		bundle.PaillierKeys = make([]*paillier.PublicKey, n)
		for j := uint16(1); j <= n; j++ {
			bundle.PaillierKeys[j-1] = coms.Get(j).Paillier
		}
	}

	logger.Log.Infof("Key generation successful! Group key x=%x", groupKey.X())
	return bundle, nil
}

// open checks party j's decommitment and returns its public key.
func (k *Keygen) open(com KeygenCommitment, d Decommitment, j uint16) (*crypto.ECPoint, error) {
	if k.curve.Name == curves.ECDSA && (com.Paillier == nil || com.Paillier.N == nil) {
		return nil, errors.Wrapf(ErrInvalidCommitment, "party %d sent no paillier key", j)
	}
	return openPoint(k.curve, com.Commitment, d, j)
}

// openPoint opens a hash commitment to the coordinates of a point.
func openPoint(curve curves.Curve, com *big.Int, d Decommitment, j uint16) (*crypto.ECPoint, error) {
	if com == nil || len(d.D) != 3 {
		return nil, errors.Wrapf(ErrInvalidCommitment, "party %d sent a malformed commitment", j)
	}
	cd := &commitments.HashCommitDecommit{C: com, D: d.D}
	ok, secrets := cd.DeCommit()
	if !ok || len(secrets) != 2 {
		return nil, errors.Wrapf(ErrInvalidCommitment, "party %d decommitment does not open its commitment", j)
	}
	point, err := curve.Decode(curves.Point{X: secrets[0], Y: secrets[1]})
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidCommitment, "party %d: %v", j, err)
	}
	return point, nil
}
