// Package security provides JWT token utilities
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidBrowserToken is returned when the session cookie cannot be trusted.
var ErrInvalidBrowserToken = errors.New("invalid browser session token")

const browserTokenIssuer = "portal-pji"

// BrowserClaims identify the local state storage of one browser.
type BrowserClaims struct {
	StorageKey string `json:"sk"`
	jwt.RegisteredClaims
}

// IssueBrowserToken signs the storage key into an HS256 cookie value.
func IssueBrowserToken(storageKey, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("empty session secret")
	}
	now := time.Now().UTC()
	claims := BrowserClaims{
		StorageKey: storageKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    browserTokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign browser token: %w", err)
	}
	return signed, nil
}

// ParseBrowserToken validates a cookie value and returns its storage key.
func ParseBrowserToken(tokenString, secret string) (string, error) {
	claims := &BrowserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidBrowserToken
	}
	if claims.Issuer != browserTokenIssuer || !IsStorageKey(claims.StorageKey) {
		return "", ErrInvalidBrowserToken
	}
	return claims.StorageKey, nil
}

// TokenExpiry reads the exp claim of a backend access token without
// verifying its signature; the backend remains the authority on validity.
func TokenExpiry(tokenString string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, false
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(exp), 0).UTC(), true
}
