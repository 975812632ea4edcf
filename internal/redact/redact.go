// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package redact implements deterministic, order-sensitive masking of
// secrets and identifiers in free text. It is applied to
// every transcript before persistence.
package redact

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	ipv4Pattern  = regexp.MustCompile(`\b(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})\b`)
	tokenPattern = regexp.MustCompile(`\b[A-Za-z0-9._\-]{20,}\b`)
	urlPattern   = regexp.MustCompile(`https?://\S*(?i:password|token|key|secret)\S*`)
	dsnPattern   = regexp.MustCompile(`(?i:postgresql|mysql)://\S+`)
	envVarPattern = regexp.MustCompile(`\b(SECRET|API_KEY|TOKEN|PASSWORD|KEY|ACCESS_TOKEN|PRIVATE_KEY|SECRET_KEY)=\S+`)

	hasDigit  = regexp.MustCompile(`\d`)
	hasLetter = regexp.MustCompile(`[A-Za-z]`)
)

// Text applies every rewrite rule to s in a fixed order:
// email, IPv4, long alphanumeric secrets, sensitive URLs, DB DSNs, then
// env-style NAME=VALUE pairs. The result is idempotent: redacting already
// redacted text is a no-op.
func Text(s string) string {
	s = emailPattern.ReplaceAllString(s, "[email]")
	s = replaceValidIPv4(s)
	s = replaceSecretTokens(s)
	s = urlPattern.ReplaceAllString(s, "[url]")
	s = dsnPattern.ReplaceAllString(s, "[db_connection]")
	s = envVarPattern.ReplaceAllString(s, "[env_var]")
	return s
}

// replaceValidIPv4 masks dotted-quad sequences whose octets are all in
// 0..255. Sequences with out-of-range octets (e.g. version strings like
// 999.999.999.999) are left untouched.
func replaceValidIPv4(s string) string {
	return ipv4Pattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := strings.Split(match, ".")
		if len(parts) != 4 {
			return match
		}
		for _, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 || n > 255 {
				return match
			}
		}
		return "[ip]"
	})
}

// replaceSecretTokens masks bare alphanumeric runs of 20+ characters that
// contain at least one digit and one letter — long enough and mixed enough
// to plausibly be an API key or access token, while leaving plain English
// words and already-masked placeholders (e.g. "[email]") alone.
func replaceSecretTokens(s string) string {
	return tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		if !hasDigit.MatchString(match) || !hasLetter.MatchString(match) {
			return match
		}
		return "[token]"
	})
}
