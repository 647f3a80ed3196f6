// Package secure seals point-to-point share payloads between two parties.
//
// The key for an ordered pair of parties is the x-coordinate of
// own_secret·peer_point, left-padded to KeyLen bytes, and is used as an
// AES-256-GCM key. Keys are derived from per-session ephemeral secrets and are
// never sent anywhere.
package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"math/big"

	"github.com/bnb-chain/tss-lib/v2/crypto"
	"github.com/pkg/errors"
)

// KeyLen is the AES-256 key length.
const KeyLen = 32

// NonceLen is the GCM nonce length.
const NonceLen = 12

// ErrDecryption is returned when a sealed payload fails authentication.
var ErrDecryption = errors.New("decryption failure")

// AEAD is a sealed payload with its one-time nonce.
type AEAD struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"tag"`
}

// DeriveKey computes the symmetric key shared with the owner of peer.
func DeriveKey(secret *big.Int, peer *crypto.ECPoint) ([]byte, error) {
	if secret == nil || peer == nil {
		return nil, errors.New("derive key: nil input")
	}
	shared := peer.ScalarMult(secret)
	if shared == nil {
		return nil, errors.New("derive key: degenerate shared point")
	}
	x := shared.X()
	if x.BitLen() > KeyLen*8 {
		return nil, errors.New("derive key: coordinate wider than key")
	}
	return x.FillBytes(make([]byte, KeyLen)), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, errors.Errorf("key must be %d bytes, got %d", KeyLen, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key with a fresh random nonce.
func Seal(key, plaintext []byte) (AEAD, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return AEAD{}, err
	}
	nonce := make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return AEAD{}, errors.Wrap(err, "nonce")
	}
	return AEAD{
		Ciphertext: gcm.Seal(nil, nonce, plaintext, nil),
		Nonce:      nonce,
	}, nil
}

// Open authenticates and decrypts a sealed payload. Any tampering, a wrong key
// or a malformed nonce yields ErrDecryption.
func Open(key []byte, pack AEAD) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(pack.Nonce) != NonceLen {
		return nil, errors.Wrapf(ErrDecryption, "nonce length %d", len(pack.Nonce))
	}
	out, err := gcm.Open(nil, pack.Nonce, pack.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return out, nil
}
