// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package errtrack

import "strings"

// sensitiveKeys names context keys whose values are masked outright rather
// than logged. Matching is case-insensitive and matches on substring, since
// callers compose keys freely (e.g. "twitch_access_token", "db_password").
var sensitiveKeys = []string{
	"access_token",
	"refresh_token",
	"id_token",
	"token",
	"password",
	"secret",
	"api_key",
	"apikey",
	"authorization",
	"bearer",
	"cookie",
	"session_id",
	"sessionid",
	"dsn",
	"webhook_secret",
}

// maxContextValueLen bounds any single sanitized value so a pathological
// payload can't bloat a tracked entry.
const maxContextValueLen = 200

// SanitizeContext deep-sanitizes a context map by key-name pattern before
// it is ever stored or logged: a key matching sensitiveKeys is masked
// regardless of its value's shape, and every surviving value is truncated.
// Returns nil for a nil input so an absent context stays absent.
func SanitizeContext(ctx map[string]string) map[string]string {
	if ctx == nil {
		return nil
	}
	out := make(map[string]string, len(ctx))
	for k, v := range ctx {
		out[k] = SanitizeValue(k, v)
	}
	return out
}

// SanitizeValue masks v when key matches a sensitive key-name pattern,
// otherwise truncates v to maxContextValueLen.
func SanitizeValue(key, v string) string {
	lowerKey := strings.ToLower(key)
	for _, pattern := range sensitiveKeys {
		if strings.Contains(lowerKey, pattern) {
			return maskValue(v)
		}
	}
	return truncate(v, maxContextValueLen)
}

// maskValue shows just enough of a long secret to correlate log lines
// without exposing it; short values are fully masked.
func maskValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "***"
	}
	return v[:2] + "..." + v[len(v)-2:]
}

// SanitizeMessage replaces a free-form error message with a generic one
// when it contains any sensitive pattern, since an error string can't be
// partially redacted the way a keyed value can; any other message is
// truncated to 500 bytes.
func SanitizeMessage(msg string) string {
	lower := strings.ToLower(msg)
	for _, pattern := range sensitiveKeys {
		if strings.Contains(lower, pattern) {
			return "error message redacted: contained sensitive pattern"
		}
	}
	return truncate(msg, 500)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
