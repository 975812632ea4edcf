// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CollaboratorClaims identifies which external collaborator class a signed
// bearer token authorizes calls to (e.g. "github", "twitch", "transcriber",
// "drafter").
type CollaboratorClaims struct {
	Collaborator string `json:"collaborator"`
	jwt.RegisteredClaims
}

// CollaboratorTokenSigner issues short-lived bearer tokens for outbound
// calls to out-of-scope collaborators, separate from the admin HMAC
// envelope since collaborators are modeled as interface-only clients with
// their own bearer-token conventions.
type CollaboratorTokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewCollaboratorTokenSigner builds a signer using secret as the HMAC key.
// ttl defaults to 60s.
func NewCollaboratorTokenSigner(secret string, ttl time.Duration) *CollaboratorTokenSigner {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &CollaboratorTokenSigner{secret: []byte(secret), ttl: ttl}
}

// Sign issues a bearer token scoped to collaborator, valid for ttl from now.
func (s *CollaboratorTokenSigner) Sign(collaborator string, now time.Time) (string, error) {
	claims := &CollaboratorClaims{
		Collaborator: collaborator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("security: sign collaborator token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a collaborator bearer token, rejecting any
// signing method other than HS256 to prevent algorithm-confusion attacks.
func (s *CollaboratorTokenSigner) Verify(tokenString string) (*CollaboratorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CollaboratorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("security: parse collaborator token: %w", err)
	}

	claims, ok := token.Claims.(*CollaboratorClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("security: invalid collaborator token claims")
	}
	return claims, nil
}
