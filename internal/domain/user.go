package domain

import (
	"fmt"
	"time"
)

// Role is the closed set of roles a user can hold. Tokens carry the role
// as a string claim; anything outside this set is rejected at decode so a
// forged claim cannot smuggle an unknown role into the system.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
)

// ParseRole validates a role string coming from storage or token claims.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleCustomer, RoleAdmin, RoleManager:
		return Role(value), nil
	}
	return "", fmt.Errorf("unknown role %q", value)
}

func (r Role) String() string { return string(r) }

// User represents a registered principal. The ID is immutable after
// creation. TenantID is only set for tenant-scoped roles such as manager.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         Role
	TenantID     *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
