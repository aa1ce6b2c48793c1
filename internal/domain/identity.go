package domain

import "time"

// Identity is an authenticated account of the clinic CRM.
type Identity struct {
	ID            int64
	Name          string
	Email         string
	PasswordHash  string
	AccountTypeID *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AccountType returns the account-type discriminator used for scoped permissions.
func (i *Identity) AccountType() (int64, bool) {
	if i == nil || i.AccountTypeID == nil {
		return 0, false
	}
	return *i.AccountTypeID, true
}
