// Package access is the access control guard for role-restricted views.
//
// Decide maps every combination of session state and requirement to exactly one of four
// outcomes. It never fails and has no side effects; callers act on the Decision.
package access

import (
	domainauth "github.com/schoolhub/portal/internal/domain/auth"
	"github.com/schoolhub/portal/internal/domain/nav"
)

// Requirement is the capability a view demands.
// The zero value means "any authenticated identity".
type Requirement struct {
	roles domainauth.RoleSet
}

// AnyAuthenticated admits every authenticated identity regardless of role.
func AnyAuthenticated() Requirement { return Requirement{} }

// RequireRoles admits only identities whose role is listed.
// An empty list is the same as AnyAuthenticated.
func RequireRoles(roles ...domainauth.Role) Requirement {
	return Requirement{roles: domainauth.NewRoleSet(roles...)}
}

// Roles returns the permitted roles; empty means unrestricted.
func (r Requirement) Roles() []domainauth.Role { return r.roles.Slice() }

// Permits reports whether role satisfies the requirement.
func (r Requirement) Permits(role domainauth.Role) bool {
	return r.roles.Empty() || r.roles.Contains(role)
}

// Outcome is what the guarded view should do.
type Outcome uint8

const (
	// OutcomePending renders a neutral placeholder; no authorization decision yet.
	OutcomePending Outcome = iota
	// OutcomeRedirectLogin sends the visitor to the login entry point.
	OutcomeRedirectLogin
	// OutcomeRedirectRoot sends an authenticated but unauthorized identity home.
	OutcomeRedirectRoot
	// OutcomeRender renders the guarded content.
	OutcomeRender
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeRedirectLogin:
		return "redirect_login"
	case OutcomeRedirectRoot:
		return "redirect_root"
	case OutcomeRender:
		return "render"
	default:
		return "unknown"
	}
}

// Decision is the guard's verdict. Location is set for the redirect outcomes.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Decide evaluates req against state.
// Unresolved is checked before Anonymous so that a reload never bounces an
// authenticated visitor to the login page while bootstrap is in flight.
func Decide(state domainauth.State, req Requirement) Decision {
	switch state.Phase() {
	case domainauth.PhaseAuthenticated:
		id, _ := state.Identity()
		if !req.Permits(id.Role) {
			return Decision{Outcome: OutcomeRedirectRoot, Location: nav.RootPath}
		}
		return Decision{Outcome: OutcomeRender}
	case domainauth.PhaseAnonymous:
		return Decision{Outcome: OutcomeRedirectLogin, Location: nav.LoginPath}
	default:
		return Decision{Outcome: OutcomePending}
	}
}

// ForPath returns the requirement of a navigable route. The profile is open to every
// authenticated identity; any other route admits the roles whose menu links to it.
// ok is false for routes no menu reaches.
func ForPath(path string) (req Requirement, ok bool) {
	if path == nav.ProfilePath {
		return AnyAuthenticated(), true
	}
	roles := nav.RolesFor(path)
	if len(roles) == 0 {
		return Requirement{}, false
	}
	return RequireRoles(roles...), true
}
