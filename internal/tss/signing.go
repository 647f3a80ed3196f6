package tss

import (
	"context"
	"crypto/sha512"
	"math/big"

	"github.com/bnb-chain/tss-lib/v2/common"
	"github.com/bnb-chain/tss-lib/v2/crypto"
	"github.com/bnb-chain/tss-lib/v2/crypto/commitments"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"tss-cli/internal/curves"
	"tss-cli/internal/hd"
	"tss-cli/internal/logger"
	"tss-cli/internal/network"
	"tss-cli/internal/party"
	"tss-cli/internal/session"
)

// Signature is a Schnorr signature (R, s) with s·G = R + c·PublicKey.
type Signature struct {
	R         curves.Point `json:"r"`
	S         *big.Int     `json:"s"`
	PublicKey curves.Point `json:"public_key"`
	Path      string       `json:"path,omitempty"`
}

// Bytes is enc(R) || s. On edwards25519 this is a standard Ed25519 signature.
func (sig *Signature) Bytes(curve curves.Curve) ([]byte, error) {
	r, err := curve.Decode(sig.R)
	if err != nil {
		return nil, err
	}
	rb, err := curve.Bytes(r)
	if err != nil {
		return nil, err
	}
	sb := curves.ScalarBytes(sig.S)
	if curve.Name == curves.EDDSA {
		reverse(sb)
	}
	return append(rb, sb...), nil
}

// Signer produces a threshold signature together with t other signers.
type Signer struct {
	client *network.Client
	bundle *KeyShareBundle
	curve  curves.Curve
	roomID string
	path   string
	opts   Options
}

// NewSigner prepares a signer for a room. A non-empty path signs with the
// derived child key instead of the group key.
func NewSigner(client *network.Client, bundle *KeyShareBundle, roomID, path string, opts Options) (*Signer, error) {
	curve, err := curves.ByName(bundle.Curve)
	if err != nil {
		return nil, err
	}
	if _, err := hd.ParsePath(path); err != nil {
		return nil, err
	}
	return &Signer{
		client: client,
		bundle: bundle,
		curve:  curve,
		roomID: roomID,
		path:   path,
		opts:   opts,
	}, nil
}

// Run waits for the signing room to fill and signs message.
func (s *Signer) Run(ctx context.Context, message []byte) (*Signature, error) {
	logger.Log.Info("--- Phase 1: Signup ---")
	t := s.bundle.Threshold()
	assignment, joined, err := session.NewNegotiator(s.client, s.opts.SignupTimeout).
		SignupSign(ctx, t, s.roomID, s.bundle.PartyOrdinal, s.curve.Name)
	if err != nil {
		return nil, errors.Wrap(err, "signing signup")
	}
	if joined != t+1 {
		return nil, errors.Errorf("signing room %s closed with %d signers, want %d", s.roomID, joined, t+1)
	}
	ex := network.NewExchange(s.client, assignment, joined, s.opts.PollDelay, s.opts.PollTimeout)
	return s.RunSession(ctx, ex, message)
}

// RunSession runs the signing rounds on an already negotiated exchange.
func (s *Signer) RunSession(ctx context.Context, ex *network.Exchange, message []byte) (*Signature, error) {
	curve := s.curve
	b := s.bundle
	n := b.Parties()
	logger.Log.Infof("Signing session %s: signer %d of %d, key share %d", ex.SessionUUID(), ex.Self(), ex.Parties(), b.PartyOrdinal)

	// 1. --- Key ordinals ---
	logger.Log.Info("--- Phase 2: Signer set ---")
	ordinals, err := network.ExchangeBroadcast(ctx, ex, RoundSignOrdinals, b.PartyOrdinal)
	if err != nil {
		return nil, err
	}
	set := ordinals.Slice()
	seen := make(map[uint16]bool, len(set))
	for i, o := range set {
		if o < 1 || o > n || seen[o] {
			return nil, errors.Errorf("signer %d announced invalid key share %d", i+1, o)
		}
		seen[o] = true
	}

	// 2. --- Key derivation ---
	groupKey, err := b.GroupKey()
	if err != nil {
		return nil, err
	}
	pub, offset, err := hd.DeriveChild(curve, groupKey, b.ChainCode, s.path)
	if err != nil {
		return nil, errors.Wrap(err, "child key")
	}
	shares, err := publicShares(curve, b.Threshold(), b.VSS)
	if err != nil {
		return nil, err
	}

	// 3. --- Nonce commitment ---
	logger.Log.Info("--- Phase 3: Nonce ---")
	k := curve.RandomScalar()
	ri, err := curve.BaseMult(k)
	if err != nil {
		return nil, err
	}
	cmt := commitments.NewHashCommitment(curves.Rand(), ri.X(), ri.Y())
	coms, err := network.ExchangeBroadcast(ctx, ex, RoundSignCommit, NonceCommitment{Commitment: cmt.C})
	if err != nil {
		return nil, err
	}
	decoms, err := network.ExchangeBroadcast(ctx, ex, RoundSignDecommit, Decommitment{D: cmt.D})
	if err != nil {
		return nil, err
	}
	nonces, err := party.Map(decoms, func(j uint16, d Decommitment) (*crypto.ECPoint, error) {
		return openPoint(curve, coms.Get(j).Commitment, d, j)
	})
	if err != nil {
		return nil, err
	}
	R, err := curve.Sum(nonces.Slice()...)
	if err != nil {
		return nil, err
	}

	// 4. --- Partial signatures ---
	logger.Log.Info("--- Phase 4: Partial signatures ---")
	c, err := challenge(curve, R, pub, message)
	if err != nil {
		return nil, err
	}
	si := new(big.Int).Mul(c, lagrange(curve, b.PartyOrdinal, set))
	si.Mul(si, b.SharedKeys.Share)
	si = curve.Reduce(si.Add(si, k))

	partials, err := network.ExchangeBroadcast(ctx, ex, RoundSignPartial, PartialSignature{S: si})
	if err != nil {
		return nil, err
	}
	sum := new(big.Int)
	var bad *multierror.Error
	err = partials.Each(func(j uint16, p PartialSignature) error {
		if p.S == nil {
			bad = multierror.Append(bad, errors.Wrapf(ErrInvalidSignature, "signer %d sent no partial signature", j))
			return nil
		}
		ord := ordinals.Get(j)
		weight := curve.Reduce(new(big.Int).Mul(c, lagrange(curve, ord, set)))
		lhs, err := curve.BaseMult(p.S)
		if err == nil {
			var rhs *crypto.ECPoint
			if rhs, err = nonces.Get(j).Add(shares[ord-1].ScalarMult(weight)); err == nil && lhs.Equals(rhs) {
				sum.Add(sum, p.S)
				return nil
			}
		}
		bad = multierror.Append(bad, errors.Wrapf(ErrInvalidSignature, "partial signature of signer %d (key share %d) does not verify", j, ord))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := bad.ErrorOrNil(); err != nil {
		return nil, err
	}
	sum.Add(sum, new(big.Int).Mul(c, offset))

	sig := &Signature{
		R:         curves.Encode(R),
		S:         curve.Reduce(sum),
		PublicKey: curves.Encode(pub),
		Path:      s.path,
	}
	if err := Verify(curve, pub, message, sig); err != nil {
		return nil, err
	}
	logger.Log.Info("Signature successful!")
	return sig, nil
}

// Verify checks s·G = R + c·pub.
func Verify(curve curves.Curve, pub *crypto.ECPoint, message []byte, sig *Signature) error {
	if sig == nil || sig.S == nil {
		return errors.Wrap(ErrInvalidSignature, "empty signature")
	}
	R, err := curve.Decode(sig.R)
	if err != nil {
		return errors.Wrapf(ErrInvalidSignature, "nonce point: %v", err)
	}
	c, err := challenge(curve, R, pub, message)
	if err != nil {
		return err
	}
	lhs, err := curve.BaseMult(sig.S)
	if err != nil {
		return errors.Wrapf(ErrInvalidSignature, "%v", err)
	}
	rhs, err := R.Add(pub.ScalarMult(c))
	if err != nil || !lhs.Equals(rhs) {
		return errors.Wrap(ErrInvalidSignature, "signature does not verify")
	}
	return nil
}

// challenge is H(enc(R) || enc(pub) || message) mod q. Edwards signatures
// use SHA-512 read little-endian, as Ed25519 does.
func challenge(curve curves.Curve, R, pub *crypto.ECPoint, message []byte) (*big.Int, error) {
	rb, err := curve.Bytes(R)
	if err != nil {
		return nil, err
	}
	pb, err := curve.Bytes(pub)
	if err != nil {
		return nil, err
	}
	if curve.Name == curves.EDDSA {
		h := sha512.New()
		h.Write(rb)
		h.Write(pb)
		h.Write(message)
		digest := h.Sum(nil)
		reverse(digest)
		return curve.Reduce(new(big.Int).SetBytes(digest)), nil
	}
	return curve.Reduce(new(big.Int).SetBytes(common.SHA512_256(rb, pb, message))), nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
