package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiresAt extracts the expiry claim from a sync credential without
// verifying its signature. The engine only consumes credentials; the
// authoritative store is the verifier.
func ExpiresAt(credential string) (time.Time, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}

	if _, _, err := parser.ParseUnverified(credential, claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse credential: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("credential has no expiry claim")
	}

	return exp.Time, nil
}

// IsStale reports whether the credential is expired or expires within the
// given margin. Stale credentials still get dialed; this only drives the
// "refresh your session" warning before a doomed connect.
func IsStale(credential string, margin time.Duration) bool {
	exp, err := ExpiresAt(credential)
	if err != nil {
		return false
	}
	return time.Now().Add(margin).After(exp)
}
