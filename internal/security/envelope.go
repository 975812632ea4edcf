// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package security implements the HMAC admin-request envelope and the
// outbound collaborator bearer-token signer.
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Header names carried by every administrative request.
const (
	HeaderSignature      = "X-Request-Signature"
	HeaderTimestamp      = "X-Request-Timestamp"
	HeaderNonce          = "X-Request-Nonce"
	HeaderIdempotencyKey = "X-Idempotency-Key"
)

// ClockSkew bounds how far a request timestamp may drift from server time.
const ClockSkew = 5 * time.Minute

// ErrInvalidSignature is returned for any failure in the admin envelope
// (missing/malformed header, stale timestamp, bad signature, or a bare
// Authorization header on an admin route). Callers should map this to a
// generic 401 without distinguishing the cause.
var ErrInvalidSignature = errors.New("security: invalid request signature")

// Envelope verifies the signature, timestamp and nonce headers on inbound
// administrative requests. The fourth envelope header, X-Idempotency-Key, is
// handled by AdminEnvelope.
type Envelope struct {
	secret []byte
}

// NewEnvelope builds an Envelope using secret as the shared HMAC key.
func NewEnvelope(secret string) *Envelope {
	return &Envelope{secret: []byte(secret)}
}

// Sign computes the hex-encoded HMAC-SHA256 signature over body||timestamp||nonce.
func (e *Envelope) Sign(body []byte, timestamp, nonce string) string {
	mac := hmac.New(sha256.New, e.secret)
	mac.Write(body)
	mac.Write([]byte(timestamp))
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks an inbound request's envelope headers against body. now is
// injected so tests can control the clock-skew window.
func (e *Envelope) Verify(header http.Header, body []byte, now time.Time) error {
	if header.Get("Authorization") != "" {
		return ErrInvalidSignature
	}

	signature := header.Get(HeaderSignature)
	timestamp := header.Get(HeaderTimestamp)
	nonce := header.Get(HeaderNonce)
	if signature == "" || timestamp == "" || nonce == "" {
		return ErrInvalidSignature
	}

	unixSeconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	requestTime := time.Unix(unixSeconds, 0)
	skew := now.Sub(requestTime)
	if skew < 0 {
		skew = -skew
	}
	if skew > ClockSkew {
		return ErrInvalidSignature
	}

	expected := e.Sign(body, timestamp, nonce)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// NonceCache tracks recently seen nonces so a valid signature cannot be
// replayed within the clock-skew window. Entries older than ClockSkew*2 are
// swept lazily on Seen.
type NonceCache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	maxSize int
}

// NewNonceCache builds a NonceCache bounded at maxSize entries.
func NewNonceCache(maxSize int) *NonceCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &NonceCache{seen: make(map[string]time.Time), maxSize: maxSize}
}

// Seen records nonce at now and reports whether it was already present
// (i.e. this is a replay). Expired entries are swept before the check.
func (c *NonceCache) Seen(nonce string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-2 * ClockSkew)
	for n, seenAt := range c.seen {
		if seenAt.Before(cutoff) {
			delete(c.seen, n)
		}
	}

	if _, ok := c.seen[nonce]; ok {
		return true
	}
	if len(c.seen) >= c.maxSize {
		// Drop the cache rather than grow unbounded; a false negative here
		// only weakens replay protection at the cache's capacity limit, it
		// does not break correctness of the envelope signature check.
		c.seen = make(map[string]time.Time)
	}
	c.seen[nonce] = now
	return false
}
