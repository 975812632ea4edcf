// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package services provides suture.Service wrappers for pipeline components.

This package adapts existing application components to the suture v4 supervision
model, translating Start/Stop and ListenAndServe lifecycle patterns into
suture's context-aware Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation (Start/Stop or ListenAndServe to Serve)
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

Sync Service (SyncService):
  - Wraps any StartStopManager (Start(ctx) error / Stop() error)
  - Used for the daily scheduler's Start/Stop lifecycle

# Lifecycle Patterns

Start/Stop Pattern:

	type StartStopManager interface {
	    Start(ctx context.Context) error
	    Stop() error
	}

	// Wrapped as:
	func (s *SyncService) Serve(ctx context.Context) error {
	    if err := s.manager.Start(ctx); err != nil {
	        return err
	    }
	    <-ctx.Done()
	    return s.manager.Stop()
	}

ListenAndServe Pattern:

	type HTTPServer interface {
	    ListenAndServe() error
	    Shutdown(ctx context.Context) error
	}

	// Wrapped as:
	func (s *HTTPServerService) Serve(ctx context.Context) error {
	    go s.server.ListenAndServe()
	    <-ctx.Done()
	    return s.server.Shutdown(shutdownCtx)
	}

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# Service Identification

All services implement fmt.Stringer for logging:

	func (s *HTTPServerService) String() string {
	    return "http-server"
	}

Suture uses this for log messages:

	INFO http-server: starting
	INFO http-server: stopped
	ERROR http-server: restarting after failure

# Thread Safety

All service wrappers are safe for concurrent use:
  - Context cancellation is handled atomically
  - Multiple Serve calls are not supported (undefined behavior)

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
  - cmd/server/worker_service.go: consumeService, this package's third
    suture.Service, kept alongside the job consumer rather than here since
    it wraps a composition-root-specific callback, not a reusable lifecycle.
*/
package services
