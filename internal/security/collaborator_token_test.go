// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"testing"
	"time"
)

func TestCollaboratorTokenSignAndVerifyRoundTrips(t *testing.T) {
	signer := NewCollaboratorTokenSigner("collaborator-secret", 60*time.Second)
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	token, err := signer.Sign("github", now)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Collaborator != "github" {
		t.Errorf("collaborator = %q, want github", claims.Collaborator)
	}
}

func TestCollaboratorTokenVerifyRejectsWrongSecret(t *testing.T) {
	signer := NewCollaboratorTokenSigner("secret-a", 60*time.Second)
	other := NewCollaboratorTokenSigner("secret-b", 60*time.Second)
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	token, err := signer.Sign("twitch", now)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := other.Verify(token); err == nil {
		t.Error("expected verification with a different secret to fail")
	}
}

func TestCollaboratorTokenVerifyRejectsExpiredToken(t *testing.T) {
	signer := NewCollaboratorTokenSigner("secret", 1*time.Second)
	issuedAt := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	token, err := signer.Sign("drafter", issuedAt)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// jwt.ParseWithClaims uses real wall-clock time for expiry comparison,
	// so a token issued well in the past with a 1s TTL is already expired.
	if _, err := signer.Verify(token); err == nil {
		t.Error("expected expired token to fail verification")
	}
}
