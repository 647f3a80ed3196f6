package tss

import (
	"math/big"

	"github.com/bnb-chain/tss-lib/v2/crypto/paillier"

	"tss-cli/internal/curves"
)

// Keygen rounds.
const (
	RoundCommit   = "round1"
	RoundDecommit = "round2"
	RoundShares   = "round3"
	RoundVSS      = "round4"
	RoundProof    = "round5"
)

// Signing rounds.
const (
	RoundSignOrdinals = "sign_round0"
	RoundSignCommit   = "sign_round1"
	RoundSignDecommit = "sign_round2"
	RoundSignPartial  = "sign_round3"
)

// KeygenCommitment commits to the party's public key y_i. ECDSA parties also
// publish their Paillier encryption key.
type KeygenCommitment struct {
	Commitment *big.Int            `json:"com"`
	Paillier   *paillier.PublicKey `json:"e,omitempty"`
}

// Decommitment opens a hash commitment: D[0] is the blinding value, the rest
// are the committed coordinates.
type Decommitment struct {
	D []*big.Int `json:"blind_factor"`
}

// VSSScheme is a dealer's Feldman commitment to its sharing polynomial.
// Commitments[0] is the dealer's public key.
type VSSScheme struct {
	Threshold   uint16         `json:"threshold"`
	ShareCount  uint16         `json:"share_count"`
	Commitments []curves.Point `json:"commitments"`
}

// NonceCommitment is the first signing message.
type NonceCommitment struct {
	Commitment *big.Int `json:"com"`
}

// PartialSignature is a signer's contribution s_i.
type PartialSignature struct {
	S *big.Int `json:"s_i"`
}
