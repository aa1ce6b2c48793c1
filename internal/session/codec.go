package session

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCookie is returned when a cookie value fails verification.
var ErrInvalidCookie = errors.New("invalid session cookie")

// Codec signs session ids for the cookie with HS256 under the application key.
type Codec struct {
	secret []byte
	now    func() time.Time
}

type cookieClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func NewCodec(appKey string) *Codec {
	return &Codec{secret: []byte(appKey), now: time.Now}
}

// WithClock overrides the time source used for issuing and expiry checks.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// Encode returns the cookie value for a session id, valid for ttl. Callers re-encode
// whenever the server-side session slides so the two lifetimes stay aligned.
func (c *Codec) Encode(sessionID string, ttl time.Duration) (string, error) {
	now := c.now()
	claims := &cookieClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode verifies a cookie value and returns the session id it carries.
func (c *Codec) Decode(value string) (string, error) {
	if value == "" {
		return "", ErrInvalidCookie
	}
	parsed, err := jwt.ParseWithClaims(value, &cookieClaims{}, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		return "", ErrInvalidCookie
	}
	claims, ok := parsed.Claims.(*cookieClaims)
	if !ok || !parsed.Valid || claims.SessionID == "" {
		return "", ErrInvalidCookie
	}
	return claims.SessionID, nil
}
