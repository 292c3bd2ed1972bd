package auth

// Package auth contains domain-level types for identities, credentials and session state.
// It is pure and free of framework/adapter concerns.

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role represents an application's authorization role.
// The set is closed: the zero value is not a valid role and ParseRole rejects anything else.
type Role uint8

const (
	RoleAdmin Role = iota + 1
	RoleTeacher
	RoleStudent
)

// Roles lists every valid role in a stable order.
func Roles() []Role { return []Role{RoleAdmin, RoleTeacher, RoleStudent} }

// String returns the wire form used by the gateway ("Admin", "Teacher", "Student").
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleTeacher:
		return "Teacher"
	case RoleStudent:
		return "Student"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	return r >= RoleAdmin && r <= RoleStudent
}

// ParseRole parses the gateway's role string. Matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles() {
		if strings.EqualFold(strings.TrimSpace(s), r.String()) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RoleSet is a set of roles. The empty set means "no role restriction".
type RoleSet uint8

// NewRoleSet builds a set from the given roles, ignoring invalid values.
func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		if r.Valid() {
			s |= 1 << r
		}
	}
	return s
}

// Contains reports whether r is in the set.
func (s RoleSet) Contains(r Role) bool {
	return r.Valid() && s&(1<<r) != 0
}

// Empty reports whether the set has no members.
func (s RoleSet) Empty() bool { return s == 0 }

// Slice returns the members in Roles() order.
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, 3)
	for _, r := range Roles() {
		if s.Contains(r) {
			out = append(out, r)
		}
	}
	return out
}

// Identity is the resolved authenticated principal.
// Role is the sole authorization axis; Profile is role-specific and passed through untouched.
type Identity struct {
	ID       string          `json:"id"`
	Username string          `json:"username,omitempty"`
	Email    string          `json:"email"`
	Role     Role            `json:"role"`
	Profile  json.RawMessage `json:"profile,omitempty"`
}

// Credential is an opaque bearer token.
type Credential string

// IsZero reports whether the credential is empty.
func (c Credential) IsZero() bool { return strings.TrimSpace(string(c)) == "" }

// Token returns the raw bearer token.
func (c Credential) Token() string { return string(c) }

// String redacts the token so credentials never end up in logs by accident.
func (c Credential) String() string {
	if c.IsZero() {
		return ""
	}
	return "[redacted]"
}
