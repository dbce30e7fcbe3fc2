package featmy

// SessionListener observes session changes. Listeners are invoked
// synchronously after the session state is updated; a panicking listener is
// isolated and logged so the remaining listeners still run.
type SessionListener func(identity Identity, role Role)

// SessionSnapshot is an immutable read of the session state.
type SessionSnapshot struct {
	Identity Identity
	Role     Role
}

// Authenticated reports whether an identity is present.
func (s SessionSnapshot) Authenticated() bool {
	return s.Identity != nil
}

// HasKnownRole reports whether the role has been derived from a profile
// record. It is false during the window between identity creation and
// profile record creation.
func (s SessionSnapshot) HasKnownRole() bool {
	return s.Role == RolePersonal || s.Role == RoleStudent
}

// SessionReader is the read-only session surface the Router consumes. The
// session object is mutated only by the Manager.
type SessionReader interface {
	Session() SessionSnapshot
	Ready() <-chan struct{}
}

func sameIdentity(a, b Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID() == b.ID()
}
