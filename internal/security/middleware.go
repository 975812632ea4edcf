// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/dailyrecap/pipeline/internal/metrics"
)

// AdminEnvelope enforces the HMAC envelope, nonce replay protection, and
// idempotency-key caching on administrative routes.
type AdminEnvelope struct {
	envelope    *Envelope
	nonces      *NonceCache
	idempotency *IdempotencyStore
	now         func() time.Time
}

// NewAdminEnvelope builds an AdminEnvelope middleware using secret as the
// shared HMAC key.
func NewAdminEnvelope(secret string) *AdminEnvelope {
	return &AdminEnvelope{
		envelope:    NewEnvelope(secret),
		nonces:      NewNonceCache(10000),
		idempotency: NewIdempotencyStore(),
		now:         time.Now,
	}
}

// Verify is middleware enforcing the signature/timestamp/nonce envelope and
// serving cached responses for previously seen idempotency keys. Any
// envelope failure produces a generic 401 without revealing the cause.
func (a *AdminEnvelope) Verify(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			metrics.RecordEnvelopeRejection("malformed_body")
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		now := a.now()
		if err := a.envelope.Verify(r.Header, body, now); err != nil {
			metrics.RecordEnvelopeRejection("signature")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		nonce := r.Header.Get(HeaderNonce)
		if a.nonces.Seen(nonce, now) {
			metrics.RecordEnvelopeRejection("nonce_replay")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		idempotencyKey := r.Header.Get(HeaderIdempotencyKey)
		if idempotencyKey != "" {
			if status, cached, ok := a.idempotency.Lookup(idempotencyKey, now); ok {
				w.WriteHeader(status)
				_, _ = w.Write(cached)
				return
			}
		}

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next(rec, r)

		if idempotencyKey != "" {
			a.idempotency.Record(idempotencyKey, rec.statusCode, rec.body, now)
		}
	}
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       []byte
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body = append(r.body, b...)
	return r.ResponseWriter.Write(b)
}
