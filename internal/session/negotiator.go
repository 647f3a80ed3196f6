package session

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"tss-cli/internal/dto"
	"tss-cli/internal/logger"
	"tss-cli/internal/network"
)

const (
	// SignupInterval is the pause between two signing signup polls.
	SignupInterval = 100 * time.Millisecond
	// DefaultSignupTimeout is the inactivity window of a filling signing room.
	DefaultSignupTimeout = 30 * time.Second
)

// Negotiator obtains party assignments from the relay.
type Negotiator struct {
	client   *network.Client
	timeout  time.Duration
	interval time.Duration
}

// NewNegotiator creates a negotiator. A non-positive timeout selects the default.
func NewNegotiator(client *network.Client, signupTimeout time.Duration) *Negotiator {
	if signupTimeout <= 0 {
		signupTimeout = DefaultSignupTimeout
	}
	return &Negotiator{client: client, timeout: signupTimeout, interval: SignupInterval}
}

// SignupKeygen joins the current keygen session for the cohort shape.
func (n *Negotiator) SignupKeygen(ctx context.Context, threshold, parties uint16, curve string) (dto.PartyAssignment, error) {
	req := dto.KeygenSignupRequest{Params: dto.NewParams(threshold, parties), Curve: curve}

	var res dto.Result[dto.PartySignup]
	if err := n.client.Post(ctx, "signupkeygen", req, &res); err != nil {
		return dto.PartyAssignment{}, err
	}
	if res.Err != nil {
		return dto.PartyAssignment{}, errors.Wrapf(network.ErrRelay, "signupkeygen: %s", res.Err.Error)
	}
	if res.Ok == nil {
		return dto.PartyAssignment{}, errors.Wrap(network.ErrRelay, "signupkeygen: empty reply")
	}
	if res.Ok.Number < 1 || res.Ok.Number > parties {
		return dto.PartyAssignment{}, errors.Wrapf(network.ErrRelay, "signupkeygen: ordinal %d out of range 1..%d", res.Ok.Number, parties)
	}

	logger.Log.Infof("Joined keygen session %s as party %d of %d", res.Ok.UUID, res.Ok.Number, parties)
	return dto.PartyAssignment{Ordinal: res.Ok.Number, SessionUUID: res.Ok.UUID}, nil
}

// SignupSign polls the signing room until threshold+1 signers are present.
// The relay may renumber signers while the room fills, so the order of the
// latest reply wins; the one that comes with the room uuid is final. The wait
// fails once nobody new has joined for the signup timeout.
func (n *Negotiator) SignupSign(ctx context.Context, threshold uint16, roomID string, keyOrdinal uint16, curve string) (dto.PartyAssignment, uint16, error) {
	req := dto.SigningSignupRequest{
		Threshold:   threshold,
		RoomID:      roomID,
		PartyNumber: keyOrdinal,
		CurveName:   curve,
	}

	var joined uint16
	deadline := time.Now().Add(n.timeout)
	for {
		var res dto.Result[dto.SigningPartySignup]
		if err := n.client.Post(ctx, "signupsign", req, &res); err != nil {
			return dto.PartyAssignment{}, 0, err
		}
		if res.Err != nil {
			return dto.PartyAssignment{}, 0, errors.Wrapf(network.ErrRelay, "signupsign: %s", res.Err.Error)
		}
		if res.Ok == nil {
			return dto.PartyAssignment{}, 0, errors.Wrap(network.ErrRelay, "signupsign: empty reply")
		}
		signup := *res.Ok
		req.PartyUUID = signup.PartyUUID

		if signup.RoomUUID != "" {
			logger.Log.Infof("Signing room %s complete, seated as party %d of %d", roomID, signup.PartyOrder, signup.TotalJoined)
			return dto.PartyAssignment{Ordinal: signup.PartyOrder, SessionUUID: signup.RoomUUID}, signup.TotalJoined, nil
		}

		if signup.TotalJoined > joined {
			joined = signup.TotalJoined
			deadline = time.Now().Add(n.timeout)
			logger.Log.Debugf("Room %s: %d/%d signers present", roomID, joined, threshold+1)
		}
		if time.Now().After(deadline) {
			return dto.PartyAssignment{}, 0, errors.Wrapf(network.ErrTimeout, "room %s: %d/%d signers after %s", roomID, joined, threshold+1, n.timeout)
		}

		select {
		case <-ctx.Done():
			return dto.PartyAssignment{}, 0, ctx.Err()
		case <-time.After(n.interval):
		}
	}
}

