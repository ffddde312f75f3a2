package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role is the capability the caller authenticated with.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleProvider Role = "Provider"
	RoleStudent  Role = "Student"
)

// ParseRole accepts a role name in any letter case.
func ParseRole(s string) (Role, error) {
	r := Role(Canonical(s))
	switch r {
	case RoleAdmin, RoleProvider, RoleStudent:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Canonical trims s and title-cases it, so "approved " becomes "Approved".
// Used for loosely typed transport input; the parsers stay strict.
func Canonical(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}

// Actor is the resolved identity of a caller.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool    { return a.Role == RoleAdmin }
func (a Actor) IsProvider() bool { return a.Role == RoleProvider }
func (a Actor) IsStudent() bool  { return a.Role == RoleStudent }

// CanManageJob reports whether the actor has authority over the job's
// applications, assignments and lifecycle.
func (a Actor) CanManageJob(j *Job) bool {
	if a.IsAdmin() {
		return true
	}
	return a.IsProvider() && j.ProviderID == a.UserID
}

// User is the read-only projection of an account the workflow needs.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Role     Role   `json:"role"`
}

// DisplayName falls back to fallback when the user has no name.
func (u *User) DisplayName(fallback string) string {
	if u == nil || strings.TrimSpace(u.FullName) == "" {
		return fallback
	}
	return u.FullName
}
