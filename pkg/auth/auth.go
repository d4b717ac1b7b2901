// Package auth verifies Clerk-issued session tokens.
//
// Clerk signs session JWTs with RS256; the instance public key is
// distributed out of band and supplied as PEM. Verification checks the
// signature, the standard time claims, and optionally the azp
// (authorized party) claim against a configured allowlist of frontend
// origins.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Errors returned by Verify.
var (
	ErrInvalidToken      = errors.New("auth: invalid token")
	ErrUnauthorizedParty = errors.New("auth: azp not in authorized parties")
)

// Verifier checks Clerk session tokens against an RS256 public key.
type Verifier struct {
	key     *rsa.PublicKey
	parties map[string]struct{}
}

// clerkClaims is the subset of Clerk's session token claims we use.
type clerkClaims struct {
	jwt.RegisteredClaims

	// Azp is the origin of the frontend that requested the token.
	Azp string `json:"azp"`
}

// NewVerifier creates a Verifier from a PEM-encoded RS256 public key.
// If authorizedParties is non-empty, tokens must carry an azp claim
// matching one of the entries.
func NewVerifier(pemKey string, authorizedParties []string) (*Verifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key: %w", err)
	}
	v := &Verifier{key: key}
	if len(authorizedParties) > 0 {
		v.parties = make(map[string]struct{}, len(authorizedParties))
		for _, p := range authorizedParties {
			v.parties[p] = struct{}{}
		}
	}
	return v, nil
}

// Verify checks the token and returns its subject (the Clerk user id).
func (v *Verifier) Verify(token string) (string, error) {
	var claims clerkClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	if v.parties != nil {
		if _, ok := v.parties[claims.Azp]; !ok {
			return "", fmt.Errorf("%w: %q", ErrUnauthorizedParty, claims.Azp)
		}
	}
	return claims.Subject, nil
}
