// Command shardnode is the reference implementation of one shard-group
// node: an HTTP+JSON server backed by an in-memory internal/accessmanager
// store, serving the full wire surface internal/shardclient.HTTPClient
// calls. Real deployments are expected to run their own node
// implementation against whatever storage backend they choose;
// shardnode exists to make the Shard Configuration Set and Operation
// Coordinator exercisable end to end without external dependencies.
//
// Configuration:
//   - SHARDNODE_LISTEN: listen address (default ":9000")
//   - SHARDNODE_DESCRIPTION: this node's shard-configuration description,
//     attached to the startup and shutdown log lines
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamware/authzd/internal/accessmanager"
	"github.com/dreamware/authzd/internal/shardnodeserver"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	listen := getenv("SHARDNODE_LISTEN", ":9000")
	description := getenv("SHARDNODE_DESCRIPTION", listen)

	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Str("description", description).Logger()

	mgr := accessmanager.New()
	srv := &http.Server{
		Addr:              listen,
		Handler:           shardnodeserver.NewHandler(mgr),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info().Str("listen", listen).Msg("shardnode listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error().Err(err).Msg("shutdown error")
	}
	zl.Info().Msg("shardnode stopped")
}
