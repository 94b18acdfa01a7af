package creds

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Tokens are colon-delimited triples "username:uuid:timestamp" issued by
// the backend, sometimes base64-wrapped. The two forms carry different
// expiry policies: the encoded form is valid for 1 hour, the plain form
// for 24 hours. The asymmetry is inherited from the backend and both
// paths are kept; ValidateToken reports which policy applied.
const (
	encodedTokenMaxAge = time.Hour
	plainTokenMaxAge   = 24 * time.Hour
)

var (
	ErrTokenMalformed = errors.New("token is not a username:uuid:timestamp triple")
	ErrTokenExpired   = errors.New("token expired")
)

// TokenClaims is the decoded content of a bearer token.
type TokenClaims struct {
	Username string
	Nonce    string
	IssuedAt time.Time
	// Encoded reports whether the token arrived base64-wrapped, which
	// selects the 1-hour expiry policy instead of the 24-hour one.
	Encoded bool
}

// MaxAge returns the expiry window for this token's form.
func (c *TokenClaims) MaxAge() time.Duration {
	if c.Encoded {
		return encodedTokenMaxAge
	}
	return plainTokenMaxAge
}

// ParseToken decodes a bearer token without checking expiry. A token
// that base64-decodes is judged entirely under the encoded rules; there
// is no fallback to the plain form for a decodable-but-malformed token.
func ParseToken(token string) (*TokenClaims, error) {
	if token == "" {
		return nil, ErrTokenMalformed
	}

	if decoded, err := base64.StdEncoding.DecodeString(token); err == nil {
		claims, err := parseTriple(string(decoded))
		if err != nil {
			return nil, err
		}
		claims.Encoded = true
		return claims, nil
	}

	return parseTriple(token)
}

// ValidateToken parses the token and checks it against the expiry policy
// of its form, evaluated at now.
func ValidateToken(token string, now time.Time) (*TokenClaims, error) {
	claims, err := ParseToken(token)
	if err != nil {
		return nil, err
	}
	if age := now.Sub(claims.IssuedAt); age > claims.MaxAge() {
		return claims, fmt.Errorf("%w: issued %s ago, max %s", ErrTokenExpired, age.Round(time.Second), claims.MaxAge())
	}
	return claims, nil
}

func parseTriple(s string) (*TokenClaims, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, ErrTokenMalformed
	}
	username, nonce, ts := parts[0], parts[1], parts[2]
	if username == "" || nonce == "" || ts == "" {
		return nil, ErrTokenMalformed
	}
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp %q", ErrTokenMalformed, ts)
	}
	return &TokenClaims{
		Username: username,
		Nonce:    nonce,
		IssuedAt: time.UnixMilli(ms),
	}, nil
}
