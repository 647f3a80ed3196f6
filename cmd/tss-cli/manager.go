package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"tss-cli/api"
	"tss-cli/api/handlers"
	"tss-cli/internal/logger"
	"tss-cli/internal/relay"
	"tss-cli/internal/session"
)

var managerCmd = &cobra.Command{
	Use:   "manager",
	Short: "Run the rendezvous relay",
	Args:  cobra.NoArgs,
	RunE:  runManager,
}

func runManager(cmd *cobra.Command, _ []string) error {
	rc := cfg.Relay

	var store relay.Store
	switch rc.Backend {
	case "redis":
		ttl := time.Duration(rc.EntryTTL) * time.Second
		store = relay.NewRedisStore(relay.NewPool(rc.RedisAddress), "tss-cli:", ttl)
		logger.Log.Infof("Relay entries kept in redis at %s", rc.RedisAddress)
	default:
		store = relay.NewMemoryStore()
	}
	defer store.Close()

	sessions := session.NewManager(time.Duration(rc.StaleAfter)*time.Second, time.Duration(rc.RoomTTL)*time.Second)

	if cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    rc.Listen,
		Handler: api.SetupRouter(handlers.NewRelayHandler(store, sessions)),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("Manager listening on %s", rc.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	logger.Log.Info("Shutting down manager")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
