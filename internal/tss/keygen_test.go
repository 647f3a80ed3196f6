package tss

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnb-chain/tss-lib/v2/crypto"
	"github.com/bnb-chain/tss-lib/v2/crypto/commitments"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tss-cli/internal/curves"
	"tss-cli/internal/dto"
	"tss-cli/internal/network"
	"tss-cli/internal/relaytest"
	"tss-cli/internal/secure"
	"tss-cli/internal/storage"
)

var fastOptions = Options{
	PollDelay:     2 * time.Millisecond,
	PollTimeout:   60 * time.Second,
	SignupTimeout: 5 * time.Second,
	PaillierBits:  1024,
}

// runKeygen runs a full keygen among n parties against one relay.
func runKeygen(t *testing.T, relay *relaytest.Relay, curveName string, threshold, n uint16, stores []storage.Store) []*KeyShareBundle {
	t.Helper()
	curve, err := curves.ByName(curveName)
	require.NoError(t, err)

	bundles := make([]*KeyShareBundle, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < int(n); i++ {
		var store storage.Store
		if stores != nil {
			store = stores[i]
		}
		kg, err := NewKeygen(network.NewClient(relay.URL), curve, threshold, n, store, fastOptions)
		require.NoError(t, err)

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bundles[i], errs[i] = kg.Run(context.Background())
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i], "party %d", i+1)
	}
	return bundles
}

func checkBundles(t *testing.T, curve curves.Curve, bundles []*KeyShareBundle) {
	t.Helper()
	n := uint16(len(bundles))

	seen := make(map[uint16]bool)
	for _, b := range bundles {
		seen[b.PartyOrdinal] = true
		assert.Equal(t, n, b.Parties())
		assert.Equal(t, 0, bundles[0].GroupPublicKey.X.Cmp(b.GroupPublicKey.X))
		assert.Equal(t, 0, bundles[0].GroupPublicKey.Y.Cmp(b.GroupPublicKey.Y))
		assert.Equal(t, 0, bundles[0].ChainCode.Cmp(b.ChainCode))
		assert.Equal(t, bundles[0].SessionUUID, b.SessionUUID)
	}
	assert.Len(t, seen, int(n))

	// Every share matches the public share derived from the commitments.
	shares, err := publicShares(curve, bundles[0].Threshold(), bundles[0].VSS)
	require.NoError(t, err)
	for _, b := range bundles {
		xi, err := curve.BaseMult(b.SharedKeys.Share)
		require.NoError(t, err)
		assert.True(t, xi.Equals(shares[b.PartyOrdinal-1]), "party %d", b.PartyOrdinal)
	}

	// Any t+1 shares interpolate to the group secret.
	set := make([]uint16, 0, len(bundles))
	byOrdinal := make(map[uint16]*KeyShareBundle)
	for _, b := range bundles {
		byOrdinal[b.PartyOrdinal] = b
	}
	for o := uint16(1); o <= bundles[0].Threshold()+1; o++ {
		set = append(set, o)
	}
	secret := new(big.Int)
	for _, o := range set {
		term := new(big.Int).Mul(lagrange(curve, o, set), byOrdinal[o].SharedKeys.Share)
		secret.Add(secret, term)
	}
	y, err := curve.BaseMult(secret)
	require.NoError(t, err)
	group, err := bundles[0].GroupKey()
	require.NoError(t, err)
	assert.True(t, y.Equals(group))
}

func TestKeygen_EDDSA(t *testing.T) {
	relay := relaytest.New(t)
	curve, err := curves.ByName(curves.EDDSA)
	require.NoError(t, err)

	dir := t.TempDir()
	stores := make([]storage.Store, 3)
	for i := range stores {
		stores[i] = storage.NewFileStore(filepath.Join(dir, fmt.Sprintf("keys%d.store", i+1)))
	}
	bundles := runKeygen(t, relay, curves.EDDSA, 1, 3, stores)
	checkBundles(t, curve, bundles)

	for i, b := range bundles {
		rec, err := stores[i].LoadKeyShare(context.Background(), "", 0)
		require.NoError(t, err)
		loaded, err := DecodeBundle(curves.EDDSA, rec.Data)
		require.NoError(t, err)
		assert.Equal(t, b.PartyOrdinal, loaded.PartyOrdinal)
		assert.Equal(t, 0, b.SharedKeys.Share.Cmp(loaded.SharedKeys.Share))
		assert.Equal(t, 0, b.ChainCode.Cmp(loaded.ChainCode))
		assert.Nil(t, loaded.PaillierKeys)
	}
}

func TestKeygen_ECDSA(t *testing.T) {
	if testing.Short() {
		t.Skip("paillier key generation is slow")
	}
	relay := relaytest.New(t)
	curve, err := curves.ByName(curves.ECDSA)
	require.NoError(t, err)

	bundles := runKeygen(t, relay, curves.ECDSA, 1, 3, nil)
	checkBundles(t, curve, bundles)

	for _, b := range bundles {
		require.Len(t, b.PaillierKeys, 3)
		require.NotNil(t, b.PartyKeys.Paillier)
		assert.Equal(t, 0, b.PartyKeys.Paillier.N.Cmp(b.PaillierKeys[b.PartyOrdinal-1].N))
	}
}

func TestKeygen_TimesOutWithoutQuorum(t *testing.T) {
	relay := relaytest.New(t)
	curve, err := curves.ByName(curves.EDDSA)
	require.NoError(t, err)

	opts := fastOptions
	opts.PollTimeout = 300 * time.Millisecond

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		kg, err := NewKeygen(network.NewClient(relay.URL), curve, 1, 3, nil, opts)
		require.NoError(t, err)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = kg.Run(context.Background())
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.Error(t, errs[i])
		assert.True(t, errors.Is(errs[i], network.ErrTimeout), "party %d: %v", i+1, errs[i])
	}
}

func TestNewKeygen_RejectsCohort(t *testing.T) {
	curve, err := curves.ByName(curves.ECDSA)
	require.NoError(t, err)
	client := network.NewClient("http://127.0.0.1:1")

	_, err = NewKeygen(client, curve, 0, 3, nil, Options{})
	assert.Error(t, err)
	_, err = NewKeygen(client, curve, 3, 3, nil, Options{})
	assert.Error(t, err)
}

func commitmentTo(p *crypto.ECPoint) *commitments.HashCommitDecommit {
	return commitments.NewHashCommitment(curves.Rand(), p.X(), p.Y())
}

func TestOpenPoint(t *testing.T) {
	curve, err := curves.ByName(curves.ECDSA)
	require.NoError(t, err)
	p, err := curve.BaseMult(big.NewInt(1234))
	require.NoError(t, err)

	cmt := commitmentTo(p)
	got, err := openPoint(curve, cmt.C, Decommitment{D: cmt.D}, 2)
	require.NoError(t, err)
	assert.True(t, got.Equals(p))

	tampered := append([]*big.Int{}, cmt.D...)
	tampered[1] = new(big.Int).Add(tampered[1], big.NewInt(1))
	_, err = openPoint(curve, cmt.C, Decommitment{D: tampered}, 2)
	assert.True(t, errors.Is(err, ErrInvalidCommitment))

	_, err = openPoint(curve, cmt.C, Decommitment{D: cmt.D[:2]}, 2)
	assert.True(t, errors.Is(err, ErrInvalidCommitment))
}

func TestDecodeSchemes_WrongDegree(t *testing.T) {
	curve, err := curves.ByName(curves.EDDSA)
	require.NoError(t, err)
	g, err := curve.BaseMult(big.NewInt(1))
	require.NoError(t, err)

	_, err = decodeSchemes(curve, 2, []VSSScheme{{Threshold: 2, Commitments: []curves.Point{curves.Encode(g)}}})
	assert.True(t, errors.Is(err, ErrInvalidVSS))
}

func TestLagrange_Interpolates(t *testing.T) {
	curve, err := curves.ByName(curves.ECDSA)
	require.NoError(t, err)

	// f(x) = 7 + 3x, evaluated at 2 and 5.
	f := func(x int64) *big.Int { return big.NewInt(7 + 3*x) }
	set := []uint16{2, 5}
	acc := new(big.Int)
	for _, i := range set {
		acc.Add(acc, new(big.Int).Mul(lagrange(curve, i, set), f(int64(i))))
	}
	assert.Equal(t, 0, big.NewInt(7).Cmp(curve.Reduce(acc)))
}

// tamperTransport rewrites the value of every entry the client sets for one round.
type tamperTransport struct {
	round  string
	mutate func(value string) string
}

func (tt tamperTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.HasSuffix(req.URL.Path, "/set") {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = req.Body.Close()
		var entry dto.Entry
		if err := json.Unmarshal(body, &entry); err == nil && strings.Contains(entry.Key, "-"+tt.round+"-") {
			entry.Value = tt.mutate(entry.Value)
			if body, err = json.Marshal(entry); err != nil {
				return nil, err
			}
		}
		req = req.Clone(req.Context())
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
	}
	return http.DefaultTransport.RoundTrip(req)
}

// runTamperedKeygen runs a 1-of-3 keygen where one party's messages of round
// are rewritten by mutate, and returns the errors of the two honest parties.
func runTamperedKeygen(t *testing.T, round string, mutate func(curve curves.Curve, value string) string) []error {
	t.Helper()
	relay := relaytest.New(t)
	curve, err := curves.ByName(curves.EDDSA)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := tamperTransport{round: round, mutate: func(v string) string { return mutate(curve, v) }}
	tampering := network.NewClient(relay.URL, network.WithHTTPClient(&http.Client{Transport: transport}))
	dishonest, err := NewKeygen(tampering, curve, 1, 3, nil, fastOptions)
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = dishonest.Run(ctx)
	}()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		kg, err := NewKeygen(network.NewClient(relay.URL), curve, 1, 3, nil, fastOptions)
		require.NoError(t, err)
		wg.Add(1)
		go func(i int, kg *Keygen) {
			defer wg.Done()
			_, errs[i] = kg.Run(ctx)
		}(i, kg)
	}
	wg.Wait()
	cancel()
	<-done
	return errs
}

func TestKeygen_TamperedShareFailsDecryption(t *testing.T) {
	errs := runTamperedKeygen(t, RoundShares, func(_ curves.Curve, v string) string {
		var pack secure.AEAD
		if err := json.Unmarshal([]byte(v), &pack); err != nil || len(pack.Ciphertext) == 0 {
			return v
		}
		pack.Ciphertext[0] ^= 0xff
		out, _ := json.Marshal(pack)
		return string(out)
	})
	for i, err := range errs {
		require.Error(t, err, "party %d", i+1)
		assert.True(t, errors.Is(err, secure.ErrDecryption), "party %d: %v", i+1, err)
	}
}

func TestKeygen_TamperedCommitmentsFailVSS(t *testing.T) {
	for _, coefficient := range []int{0, 1} {
		t.Run(fmt.Sprintf("coefficient %d", coefficient), func(t *testing.T) {
			errs := runTamperedKeygen(t, RoundVSS, func(curve curves.Curve, v string) string {
				var scheme VSSScheme
				if err := json.Unmarshal([]byte(v), &scheme); err != nil || len(scheme.Commitments) <= coefficient {
					return v
				}
				c, err := curve.Decode(scheme.Commitments[coefficient])
				if err != nil {
					return v
				}
				g, err := curve.BaseMult(big.NewInt(1))
				if err != nil {
					return v
				}
				moved, err := c.Add(g)
				if err != nil {
					return v
				}
				scheme.Commitments[coefficient] = curves.Encode(moved)
				out, _ := json.Marshal(scheme)
				return string(out)
			})
			for i, err := range errs {
				require.Error(t, err, "party %d", i+1)
				assert.True(t, errors.Is(err, ErrInvalidVSS), "party %d: %v", i+1, err)
			}
		})
	}
}

func TestKeygen_TamperedProofFails(t *testing.T) {
	errs := runTamperedKeygen(t, RoundProof, func(_ curves.Curve, v string) string {
		var proof curves.DLogProof
		if err := json.Unmarshal([]byte(v), &proof); err != nil || proof.T == nil {
			return v
		}
		proof.T = new(big.Int).Add(proof.T, big.NewInt(1))
		out, _ := json.Marshal(proof)
		return string(out)
	})
	for i, err := range errs {
		require.Error(t, err, "party %d", i+1)
		assert.True(t, errors.Is(err, ErrInvalidProof), "party %d: %v", i+1, err)
		assert.Contains(t, err.Error(), "bad dlog proof")
	}
}
