package domain

import "time"

// DefaultGuard is the guard roles and permissions belong to unless stated otherwise.
const DefaultGuard = "web"

// Role groups permissions; its name is unique per guard.
type Role struct {
	ID        int64
	Name      string
	GuardName string
	CreatedAt time.Time
}

// Permission is a named capability, optionally narrowed to a module and an account type.
type Permission struct {
	ID            int64
	Name          string
	GuardName     string
	Module        *string
	AccountTypeID *int64
	CreatedAt     time.Time
}

// ModuleName returns the functional area the permission is scoped to, if any.
func (p Permission) ModuleName() (string, bool) {
	if p.Module == nil || *p.Module == "" {
		return "", false
	}
	return *p.Module, true
}

// AccountTypeScope returns the account type the permission is restricted to, if any.
func (p Permission) AccountTypeScope() (int64, bool) {
	if p.AccountTypeID == nil {
		return 0, false
	}
	return *p.AccountTypeID, true
}
