package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// SecretLength is the number of random bytes in a token secret (256 bits).
const SecretLength = 32

// TokenGenerator creates opaque token secrets and the hashes persisted for them.
type TokenGenerator struct{}

func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// Generate returns a fresh secret and its storage hash.
// The secret is base64url without padding.
func (tg *TokenGenerator) Generate() (secret string, hash string, err error) {
	raw := make([]byte, SecretLength)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate token secret: %w", err)
	}
	secret = base64.RawURLEncoding.EncodeToString(raw)
	return secret, tg.Hash(secret), nil
}

// Hash computes the SHA-256 hex digest stored in place of the secret.
func (tg *TokenGenerator) Hash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Matches compares a presented secret against a stored hash in constant time.
func (tg *TokenGenerator) Matches(secret, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(tg.Hash(secret)), []byte(storedHash)) == 1
}

// FormatPlainText renders the value handed to clients: "<id>|<secret>".
func FormatPlainText(id int64, secret string) string {
	return strconv.FormatInt(id, 10) + "|" + secret
}

// SplitPlainText separates an "<id>|<secret>" value. ok is false for bare secrets, in
// which case the whole input is returned as the secret.
func SplitPlainText(plain string) (id int64, secret string, ok bool) {
	head, tail, found := strings.Cut(plain, "|")
	if !found {
		return 0, plain, false
	}
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil || id <= 0 {
		return 0, plain, false
	}
	return id, tail, true
}
