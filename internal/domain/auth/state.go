package auth

// Phase tags which variant a State holds.
type Phase uint8

const (
	// PhaseUnresolved: bootstrap not yet attempted or still in flight.
	PhaseUnresolved Phase = iota
	// PhaseAnonymous: no credential, or the stored one was proven invalid.
	PhaseAnonymous
	// PhaseAuthenticated: identity and credential both present and consistent.
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseUnresolved:
		return "unresolved"
	case PhaseAnonymous:
		return "anonymous"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is the session state of one client context. The zero value is Unresolved.
// Fields are unexported so an Authenticated state can only be built with both parts.
type State struct {
	phase      Phase
	identity   Identity
	credential Credential
}

// Unresolved returns the bootstrap-pending state.
func Unresolved() State { return State{phase: PhaseUnresolved} }

// Anonymous returns the signed-out state.
func Anonymous() State { return State{phase: PhaseAnonymous} }

// Authenticated returns a signed-in state for identity, proven by cred.
func Authenticated(identity Identity, cred Credential) State {
	return State{phase: PhaseAuthenticated, identity: identity, credential: cred}
}

// Phase returns the variant tag.
func (s State) Phase() Phase { return s.phase }

// IsUnresolved reports whether no authorization decision may be made yet.
func (s State) IsUnresolved() bool { return s.phase == PhaseUnresolved }

// IsAnonymous reports whether the state is Anonymous.
func (s State) IsAnonymous() bool { return s.phase == PhaseAnonymous }

// IsAuthenticated reports whether the state is Authenticated.
func (s State) IsAuthenticated() bool { return s.phase == PhaseAuthenticated }

// Identity returns the identity when authenticated.
func (s State) Identity() (Identity, bool) {
	if s.phase != PhaseAuthenticated {
		return Identity{}, false
	}
	return s.identity, true
}

// Credential returns the bearer credential when authenticated.
func (s State) Credential() (Credential, bool) {
	if s.phase != PhaseAuthenticated {
		return "", false
	}
	return s.credential, true
}

// String renders the state for logs. Credentials are never included.
func (s State) String() string {
	if s.phase == PhaseAuthenticated {
		return s.phase.String() + "(" + s.identity.Role.String() + ":" + s.identity.ID + ")"
	}
	return s.phase.String()
}
