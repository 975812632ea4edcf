// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrInvalidWebhookSignature is returned when a GitHub webhook delivery's
// X-Hub-Signature-256 header does not match the payload.
var ErrInvalidWebhookSignature = errors.New("security: invalid webhook signature")

// GitHubWebhookVerifier checks the HMAC-SHA256 signature GitHub attaches to
// every webhook delivery, computed over the raw request body with the
// repository's configured webhook secret.
type GitHubWebhookVerifier struct {
	secret []byte
}

// NewGitHubWebhookVerifier builds a verifier using secret as the shared key
// configured on the GitHub repository's webhook settings.
func NewGitHubWebhookVerifier(secret string) *GitHubWebhookVerifier {
	return &GitHubWebhookVerifier{secret: []byte(secret)}
}

// Verify checks the X-Hub-Signature-256 header value (of the form
// "sha256=<hex>") against body.
func (v *GitHubWebhookVerifier) Verify(signatureHeader string, body []byte) error {
	const prefix = "sha256="
	if !strings.HasPrefix(signatureHeader, prefix) {
		return ErrInvalidWebhookSignature
	}
	expected, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, prefix))
	if err != nil {
		return ErrInvalidWebhookSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	if subtle.ConstantTimeCompare(mac.Sum(nil), expected) != 1 {
		return ErrInvalidWebhookSignature
	}
	return nil
}
