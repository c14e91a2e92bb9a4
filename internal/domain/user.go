package domain

import (
	"fmt"
	"time"
)

// Role controls which operations a user may invoke.
type Role string

const (
	RoleSuperAdmin Role = "super-admin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

// AllRoles lists every valid role, most privileged first.
var AllRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleUser}

// ParseRole converts a raw string into a Role, rejecting anything outside the enumeration.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// User represents an account managed by the service.
type User struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"roles"`
	Native       string    `json:"native"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
