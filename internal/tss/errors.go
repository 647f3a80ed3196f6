package tss

import (
	"github.com/pkg/errors"

	"tss-cli/internal/curves"
)

var (
	// ErrInvalidProof is returned for a proof of knowledge that does not verify.
	ErrInvalidProof = curves.ErrInvalidProof
	// ErrInvalidCommitment is returned when a decommitment does not open its commitment.
	ErrInvalidCommitment = errors.New("invalid commitment")
	// ErrInvalidVSS is returned when a share is inconsistent with its dealer's commitments.
	ErrInvalidVSS = errors.New("invalid vss")
	// ErrInvalidSignature is returned for a partial or final signature that does not verify.
	ErrInvalidSignature = errors.New("invalid signature")
)
