// Package relaytest runs an in-process rendezvous manager for tests.
package relaytest

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tss-cli/api"
	"tss-cli/api/handlers"
	"tss-cli/internal/relay"
	"tss-cli/internal/session"
)

// Relay is a running manager backed by a memory store.
type Relay struct {
	*httptest.Server
	Store    *relay.MemoryStore
	Sessions *session.Manager
}

// New starts a relay that is shut down when the test ends.
func New(t testing.TB) *Relay {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := relay.NewMemoryStore()
	sessions := session.NewManager(5*time.Second, time.Minute)
	srv := httptest.NewServer(api.SetupRouter(handlers.NewRelayHandler(store, sessions)))
	t.Cleanup(srv.Close)

	return &Relay{Server: srv, Store: store, Sessions: sessions}
}
