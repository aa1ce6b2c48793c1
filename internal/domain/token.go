package domain

import "time"

// AbilityAll grants every action to a token.
const AbilityAll = "*"

// Token is a persisted bearer credential. Only the hash of its secret is stored.
type Token struct {
	ID         int64
	IdentityID int64
	Name       string
	Hash       string
	Abilities  []string
	LastUsedAt *time.Time
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// Can reports whether the token's ability scope covers the action.
func (t *Token) Can(ability string) bool {
	for _, a := range t.Abilities {
		if a == AbilityAll || a == ability {
			return true
		}
	}
	return false
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}
