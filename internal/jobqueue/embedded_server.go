// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServerConfig configures the in-process NATS JetStream server used
// when no external NATS deployment is available.
type EmbeddedServerConfig struct {
	Host      string
	Port      int
	StoreDir  string
	MaxMemory int64
	MaxStore  int64
}

// EmbeddedServer wraps a NATS server with lifecycle management so the
// pipeline has no external queue dependency to provision for a
// single-instance deployment.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts an embedded JetStream-enabled NATS server,
// waiting up to 30s for it to accept connections.
func NewEmbeddedServer(cfg EmbeddedServerConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName:         "daily-recap-jobs",
		Host:               cfg.Host,
		Port:               cfg.Port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		DontListen:         false,
		MaxPayload:         8 * 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("jobqueue: create embedded NATS server: %w", err)
	}
	ns.ConfigureLogger()

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("jobqueue: embedded NATS server not ready within timeout")
	}

	return &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the URL Publisher/Subscriber should connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server, waiting for in-flight messages or ctx
// cancellation, whichever comes first.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()
	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
