// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package errtrack

import "testing"

func TestSanitizeValueMasksByKeyName(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"access_token", "ghp_abcdefghijklmnop"},
		{"twitch_api_key", "1234567890abcdef"},
		{"Authorization", "Bearer sometoken123"},
		{"session_id", "sess_abcdefghijkl"},
	}
	for _, c := range cases {
		got := SanitizeValue(c.key, c.value)
		if got == c.value {
			t.Errorf("SanitizeValue(%q, ...) did not mask the value", c.key)
		}
	}
}

func TestSanitizeValuePassesThroughOrdinaryKeys(t *testing.T) {
	got := SanitizeValue("clip_id", "abc123")
	if got != "abc123" {
		t.Errorf("SanitizeValue(clip_id, ...) = %q, want unchanged", got)
	}
}

func TestSanitizeValueTruncatesLongOrdinaryValues(t *testing.T) {
	long := make([]byte, maxContextValueLen+50)
	for i := range long {
		long[i] = 'x'
	}
	got := SanitizeValue("description", string(long))
	if len(got) > maxContextValueLen+len("...") {
		t.Errorf("SanitizeValue did not truncate: len=%d", len(got))
	}
}

func TestSanitizeContextNilInputReturnsNil(t *testing.T) {
	if SanitizeContext(nil) != nil {
		t.Error("SanitizeContext(nil) should return nil")
	}
}

func TestSanitizeMessageRedactsSensitivePatterns(t *testing.T) {
	got := SanitizeMessage("failed to refresh token: invalid_grant")
	if got == "failed to refresh token: invalid_grant" {
		t.Error("SanitizeMessage did not redact a message containing 'token'")
	}
}

func TestSanitizeMessagePassesThroughOrdinaryErrors(t *testing.T) {
	msg := "clip abc123 not found in store"
	if got := SanitizeMessage(msg); got != msg {
		t.Errorf("SanitizeMessage(%q) = %q, want unchanged", msg, got)
	}
}
