package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryFromToken decodes the exp claim of a JWT without verifying its
// signature. The client is not the token's audience validator; it only needs
// the expiry to schedule refreshes. Returns the zero time when the token is
// not a JWT or carries no exp claim.
func expiryFromToken(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
