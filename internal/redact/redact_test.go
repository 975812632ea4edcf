// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package redact

import (
	"strings"
	"testing"
)

func TestTextRules(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"email", "contact me at jane.doe@example.com please", "contact me at [email] please"},
		{"ipv4", "connect to 192.168.1.100 now", "connect to [ip] now"},
		{"invalid ipv4 octet untouched", "version 999.999.999.999 stays", "version 999.999.999.999 stays"},
		{"long token", "key is abcd1234efgh5678ijkl9012", "key is [token]"},
		{"sensitive url", "see https://example.com/reset?token=xyz for more", "see [url] for more"},
		{"postgres dsn", "conn: postgresql://user:pw@host:5432/db", "conn: [db_connection]"},
		{"mysql dsn", "conn: mysql://user:pw@host:3306/db", "conn: [db_connection]"},
		{"env var", "export API_KEY=sk_live_abcdef1234567890", "export [env_var]"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Text(c.in)
			if got != c.want {
				t.Errorf("Text(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestTextIdempotent(t *testing.T) {
	inputs := []string{
		"reach me at jane.doe@example.com or 10.0.0.5, token abcd1234efgh5678ijkl9012",
		"no secrets here, just plain english text.",
		"export PASSWORD=hunter2hunter2hunter2",
		"",
	}
	for _, in := range inputs {
		once := Text(in)
		twice := Text(once)
		if once != twice {
			t.Errorf("Text not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestTextDoesNotMangleOrdinaryWords(t *testing.T) {
	in := "this is just a normal sentence about debugging go code"
	got := Text(in)
	if got != in {
		t.Errorf("Text mangled ordinary text: %q", got)
	}
	if strings.Contains(got, "[token]") {
		t.Error("ordinary words should never be masked as tokens")
	}
}
