// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package middleware provides HTTP middleware components for the application.

This package implements infrastructure middleware for compression, request ID
tracking, and Prometheus metrics integration. internal/api.NewRouter wires
each of these ahead of the CORS/rate-limit/HMAC-envelope stack that protects
the admin routes.

Key Components:

  - Compression: Gzip compression for clients that accept gzip
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation

Usage Example - Compression:

	import "github.com/dailyrecap/pipeline/internal/middleware"

	// Wrap handler with gzip compression
	http.HandleFunc("/api/v1/data",
	    middleware.Compression(handler),
	)

	// Responses are compressed whatever their size
	// Accept-Encoding: gzip header is required

Usage Example - Request ID:

	// Request ID middleware
	http.HandleFunc("/api/v1/logs",
	    middleware.RequestID(handler),
	)

	// Access request ID in handler
	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := r.Context().Value(middleware.RequestIDKey).(string)
	    log.Printf("[%s] Processing request", requestID)
	}

Compression Details:

The compression middleware:
  - Compresses every response; there is no size threshold
  - Supports gzip encoding (Accept-Encoding: gzip)
  - Applies to every content type; only WebSocket upgrade requests pass
    through uncompressed
  - Automatically sets Content-Encoding header
  - Has no Flush support; compressed output is written as the gzip
    writer's buffer fills and when it is closed

Thread Safety:

All middleware components are thread-safe:
  - Compression uses per-request gzip writers
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations

See Also:

  - internal/security: HMAC admin envelope and webhook verification
  - internal/api: HTTP handlers wrapped by middleware (chiAdapt bridges
    this package's http.HandlerFunc signature to Chi's convention)
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
