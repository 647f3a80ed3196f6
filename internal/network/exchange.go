package network

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"

	"tss-cli/internal/dto"
	"tss-cli/internal/logger"
	"tss-cli/internal/party"
)

const (
	// DefaultPollDelay is slept before and after every poll attempt.
	DefaultPollDelay = 25 * time.Millisecond
	// DefaultPollTimeout bounds the wait for a single peer's message.
	DefaultPollTimeout = 30 * time.Second
)

var (
	// ErrTimeout means a peer's message did not show up in time.
	ErrTimeout = errors.New("timed out waiting for peer")
	// ErrMalformed means a peer posted a payload that does not decode.
	ErrMalformed = errors.New("malformed peer message")

	errPending = errors.New("message not yet available")
)

// BroadcastKey is the relay key of a broadcast message.
func BroadcastKey(sender uint16, round, session string) string {
	return fmt.Sprintf("%d-%s-%s", sender, round, session)
}

// P2PKey is the relay key of a directed message.
func P2PKey(from, to uint16, round, session string) string {
	return fmt.Sprintf("%d-%d-%s-%s", from, to, round, session)
}

// Exchange publishes and collects the round messages of one party in one session.
type Exchange struct {
	client  *Client
	session string
	self    uint16
	parties uint16
	delay   time.Duration
	timeout time.Duration
}

// NewExchange binds a client to a negotiated party assignment.
func NewExchange(client *Client, assignment dto.PartyAssignment, parties uint16, delay, timeout time.Duration) *Exchange {
	if delay <= 0 {
		delay = DefaultPollDelay
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Exchange{
		client:  client,
		session: assignment.SessionUUID,
		self:    assignment.Ordinal,
		parties: parties,
		delay:   delay,
		timeout: timeout,
	}
}

// Self is this party's ordinal in the session.
func (e *Exchange) Self() uint16 { return e.self }

// Parties is the number of parties in the session.
func (e *Exchange) Parties() uint16 { return e.parties }

// SessionUUID is the session every relay key is scoped to.
func (e *Exchange) SessionUUID() string { return e.session }

// Broadcast publishes payload for every peer.
func (e *Exchange) Broadcast(ctx context.Context, round, payload string) error {
	return e.set(ctx, BroadcastKey(e.self, round, e.session), payload)
}

// SendP2P publishes payload for a single recipient.
func (e *Exchange) SendP2P(ctx context.Context, round string, to uint16, payload string) error {
	return e.set(ctx, P2PKey(e.self, to, round, e.session), payload)
}

// CollectBroadcasts waits for the broadcast of every peer, in ascending
// ordinal order with self skipped.
func (e *Exchange) CollectBroadcasts(ctx context.Context, round string) ([]string, error) {
	return e.collect(ctx, round, func(from uint16) string {
		return BroadcastKey(from, round, e.session)
	})
}

// CollectP2P waits for the message every peer addressed to this party.
func (e *Exchange) CollectP2P(ctx context.Context, round string) ([]string, error) {
	return e.collect(ctx, round, func(from uint16) string {
		return P2PKey(from, e.self, round, e.session)
	})
}

func (e *Exchange) collect(ctx context.Context, round string, keyOf func(from uint16) string) ([]string, error) {
	peers := party.Peers(e.self, e.parties)
	values := make([]string, 0, len(peers))
	for _, from := range peers {
		value, err := e.poll(ctx, round, from, keyOf(from))
		if err != nil {
			return nil, err
		}
		logger.Log.Debugf("[%s] party %d => party %d", round, from, e.self)
		values = append(values, value)
	}
	return values, nil
}

// poll reads one key until it exists or the per-peer window runs out.
func (e *Exchange) poll(ctx context.Context, round string, from uint16, key string) (string, error) {
	backoff := retry.WithMaxDuration(e.timeout, retry.NewConstant(2*e.delay))

	if err := sleep(ctx, e.delay); err != nil {
		return "", err
	}

	var value string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := e.get(ctx, key)
		if errors.Is(err, errPending) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if errors.Is(err, errPending) {
		return "", errors.Wrapf(ErrTimeout, "round %s: no message from party %d within %s", round, from, e.timeout)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (e *Exchange) set(ctx context.Context, key, value string) error {
	var res dto.Result[json.RawMessage]
	if err := e.client.Post(ctx, "set", dto.Entry{Key: key, Value: value}, &res); err != nil {
		return err
	}
	if res.Err != nil {
		return errors.Wrapf(ErrRelay, "set %s: %s", key, res.Err.Error)
	}
	return nil
}

func (e *Exchange) get(ctx context.Context, key string) (string, error) {
	var res dto.Result[dto.Entry]
	if err := e.client.Post(ctx, "get", dto.Index{Key: key}, &res); err != nil {
		return "", err
	}
	if res.Err != nil {
		if res.Err.Error == dto.NotFound {
			return "", errPending
		}
		return "", errors.Wrapf(ErrRelay, "get %s: %s", key, res.Err.Error)
	}
	if res.Ok == nil {
		return "", errors.Wrapf(ErrRelay, "get %s: empty reply", key)
	}
	return res.Ok.Value, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ExchangeBroadcast broadcasts own and returns every party's value for the round.
func ExchangeBroadcast[T any](ctx context.Context, e *Exchange, round string, own T) (*party.Vector[T], error) {
	raw, err := json.Marshal(own)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s message", round)
	}
	if err := e.Broadcast(ctx, round, string(raw)); err != nil {
		return nil, err
	}
	collected, err := e.CollectBroadcasts(ctx, round)
	if err != nil {
		return nil, err
	}
	others, err := decodeAll[T](round, party.Peers(e.self, e.parties), collected)
	if err != nil {
		return nil, err
	}
	return party.Assemble(e.self, e.parties, own, others)
}

// ExchangeP2P sends outgoing(j) to every peer j and returns the messages
// addressed to this party. The entry at the party's own ordinal is left unset.
func ExchangeP2P[T any](ctx context.Context, e *Exchange, round string, outgoing func(to uint16) (T, error)) (*party.Vector[T], error) {
	peers := party.Peers(e.self, e.parties)
	for _, to := range peers {
		msg, err := outgoing(to)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(msg)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s message", round)
		}
		if err := e.SendP2P(ctx, round, to, string(raw)); err != nil {
			return nil, err
		}
	}
	collected, err := e.CollectP2P(ctx, round)
	if err != nil {
		return nil, err
	}
	others, err := decodeAll[T](round, peers, collected)
	if err != nil {
		return nil, err
	}
	received := party.NewVector[T](e.parties)
	for i, from := range peers {
		if err := received.Set(from, others[i]); err != nil {
			return nil, err
		}
	}
	return received, nil
}

func decodeAll[T any](round string, from []uint16, collected []string) ([]T, error) {
	out := make([]T, len(collected))
	for i, s := range collected {
		if err := json.Unmarshal([]byte(s), &out[i]); err != nil {
			return nil, errors.Wrapf(ErrMalformed, "round %s from party %d: %v", round, from[i], err)
		}
	}
	return out, nil
}
