package network_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tss-cli/api"
	"tss-cli/api/handlers"
	"tss-cli/internal/dto"
	"tss-cli/internal/network"
	"tss-cli/internal/party"
	"tss-cli/internal/relay"
	"tss-cli/internal/relaytest"
	"tss-cli/internal/session"
)

type failingTransport struct {
	calls int32
}

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	return nil, errors.New("connection refused")
}

func TestClient_RetriesConnectionFailures(t *testing.T) {
	transport := &failingTransport{}
	client := network.NewClient("http://relay.invalid",
		network.WithHTTPClient(&http.Client{Transport: transport}),
		network.WithRetry(network.DefaultAttempts, time.Millisecond),
	)

	err := client.Post(context.Background(), "get", dto.Index{Key: "k"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, network.ErrUnreachable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&transport.calls))
}

func TestClient_ZeroRetryDelayUsesDefault(t *testing.T) {
	transport := &failingTransport{}
	client := network.NewClient("http://relay.invalid",
		network.WithHTTPClient(&http.Client{Transport: transport}),
		network.WithRetry(2, 0),
	)

	err := client.Post(context.Background(), "set", dto.Entry{Key: "k"}, nil)
	assert.True(t, errors.Is(err, network.ErrUnreachable))
	assert.Equal(t, int32(2), atomic.LoadInt32(&transport.calls))
}

func TestClient_DecodesRelayErrors(t *testing.T) {
	relay := relaytest.New(t)
	client := network.NewClient(relay.URL)

	var res dto.Result[dto.Entry]
	require.NoError(t, client.Post(context.Background(), "get", dto.Index{Key: "missing"}, &res))
	assert.Nil(t, res.Ok)
	require.NotNil(t, res.Err)
	assert.Equal(t, "not found", res.Err.Error)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "2-round1-abc", network.BroadcastKey(2, "round1", "abc"))
	assert.Equal(t, "2-3-round3-abc", network.P2PKey(2, 3, "round3", "abc"))
}

func newExchanges(url string, n uint16, timeout time.Duration) []*network.Exchange {
	client := network.NewClient(url)
	out := make([]*network.Exchange, n)
	for i := range out {
		assignment := dto.PartyAssignment{Ordinal: uint16(i + 1), SessionUUID: "session"}
		out[i] = network.NewExchange(client, assignment, n, 2*time.Millisecond, timeout)
	}
	return out
}

// runAll runs fn for every party concurrently and returns their errors by index.
func runAll(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = fn(i)
		}(i)
	}
	wg.Wait()
	return errs
}

func TestExchangeBroadcast_OrdinalOrder(t *testing.T) {
	relay := relaytest.New(t)
	const n = 4
	exchanges := newExchanges(relay.URL, n, 5*time.Second)

	results := make([]*party.Vector[uint16], n)
	errs := runAll(n, func(i int) error {
		v, err := network.ExchangeBroadcast(context.Background(), exchanges[i], "round1", uint16(100+i+1))
		results[i] = v
		return err
	})

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.True(t, results[i].Complete())
		for k := uint16(1); k <= n; k++ {
			assert.Equal(t, 100+k, results[i].Get(k), "party %d, ordinal %d", i+1, k)
		}
	}
}

func TestExchangeP2P(t *testing.T) {
	relay := relaytest.New(t)
	const n = 3
	exchanges := newExchanges(relay.URL, n, 5*time.Second)

	type note struct {
		From uint16 `json:"from"`
		To   uint16 `json:"to"`
	}
	results := make([]*party.Vector[note], n)
	errs := runAll(n, func(i int) error {
		self := exchanges[i].Self()
		v, err := network.ExchangeP2P(context.Background(), exchanges[i], "round3", func(to uint16) (note, error) {
			return note{From: self, To: to}, nil
		})
		results[i] = v
		return err
	})

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		self := uint16(i + 1)
		for _, from := range party.Peers(self, n) {
			assert.Equal(t, note{From: from, To: self}, results[i].Get(from))
		}
		assert.False(t, results[i].Complete())
	}
}

func TestCollect_TimesOutOnMissingPeer(t *testing.T) {
	relay := relaytest.New(t)
	exchanges := newExchanges(relay.URL, 3, 200*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, exchanges[0].Broadcast(ctx, "round2", "one"))
	require.NoError(t, exchanges[1].Broadcast(ctx, "round2", "two"))

	start := time.Now()
	_, err := exchanges[0].CollectBroadcasts(ctx, "round2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, network.ErrTimeout))
	assert.Contains(t, err.Error(), "party 3")
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestCollect_MalformedPayload(t *testing.T) {
	relay := relaytest.New(t)
	exchanges := newExchanges(relay.URL, 2, time.Second)
	ctx := context.Background()

	require.NoError(t, exchanges[1].Broadcast(ctx, "round1", "{not json"))
	_, err := network.ExchangeBroadcast(ctx, exchanges[0], "round1", 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, network.ErrMalformed))
}

func TestCollect_ContextCancelled(t *testing.T) {
	relay := relaytest.New(t)
	exchanges := newExchanges(relay.URL, 2, 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := exchanges[0].CollectP2P(ctx, "round3")
	require.Error(t, err)
	assert.False(t, errors.Is(err, network.ErrTimeout))
}

// brokenStore accepts writes but fails every read.
type brokenStore struct {
	*relay.MemoryStore
}

func (brokenStore) Get(context.Context, string) (string, error) {
	return "", errors.New("redis: connection pool exhausted")
}

func TestCollect_RelayErrorIsFatal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := brokenStore{MemoryStore: relay.NewMemoryStore()}
	srv := httptest.NewServer(api.SetupRouter(handlers.NewRelayHandler(store, session.NewManager(time.Second, time.Minute))))
	defer srv.Close()

	exchanges := newExchanges(srv.URL, 2, 5*time.Second)
	ctx := context.Background()
	require.NoError(t, exchanges[1].Broadcast(ctx, "round2", "two"))

	start := time.Now()
	_, err := exchanges[0].CollectBroadcasts(ctx, "round2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, network.ErrRelay), err.Error())
	assert.False(t, errors.Is(err, network.ErrTimeout))
	assert.Contains(t, err.Error(), "connection pool exhausted")
	assert.Less(t, time.Since(start), time.Second)
}
