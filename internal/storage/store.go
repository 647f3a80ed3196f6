// Package storage persists a party's key share bundle.
package storage

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when no key share matches the lookup.
var ErrNotFound = errors.New("key share not found")

// Record is one party's key share of one group key.
type Record struct {
	KeyID        string
	Curve        string
	Threshold    uint16
	Parties      uint16
	PartyOrdinal uint16
	PublicKey    string // hex of the compressed group key
	Data         []byte // encoded key share bundle
}

// Store saves and loads key share records.
type Store interface {
	SaveKeyShare(ctx context.Context, rec Record) error
	LoadKeyShare(ctx context.Context, keyID string, ordinal uint16) (*Record, error)
}
