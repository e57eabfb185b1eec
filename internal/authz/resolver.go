package authz

// HasPermission reports whether actor holds exactly p. A nil actor holds
// nothing.
func HasPermission(actor *Actor, p Permission) bool {
	if actor == nil {
		return false
	}
	return actor.has(p)
}

// HasAnyPermission reports whether actor holds at least one of ps. An empty
// requirement list is never satisfied.
func HasAnyPermission(actor *Actor, ps ...Permission) bool {
	if actor == nil {
		return false
	}
	for _, p := range ps {
		if actor.has(p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether actor holds every one of ps.
func HasAllPermissions(actor *Actor, ps ...Permission) bool {
	if actor == nil {
		return false
	}
	for _, p := range ps {
		if !actor.has(p) {
			return false
		}
	}
	return true
}

// Mode names how a requirement list is combined.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeAny    Mode = "any"
	ModeAll    Mode = "all"
)

// Requirement is a capability requirement declared next to the thing it
// guards: a route, a menu entry or a button.
type Requirement struct {
	Mode        Mode
	Permissions []Permission
}

// Require builds a single-permission requirement.
func Require(p Permission) Requirement {
	return Requirement{Mode: ModeSingle, Permissions: []Permission{p}}
}

// RequireAny builds an any-of requirement.
func RequireAny(ps ...Permission) Requirement {
	return Requirement{Mode: ModeAny, Permissions: ps}
}

// RequireAll builds an all-of requirement.
func RequireAll(ps ...Permission) Requirement {
	return Requirement{Mode: ModeAll, Permissions: ps}
}

// Allows evaluates the requirement for actor. An unknown mode denies.
func (r Requirement) Allows(actor *Actor) bool {
	switch r.Mode {
	case ModeSingle:
		return len(r.Permissions) == 1 && HasPermission(actor, r.Permissions[0])
	case ModeAny:
		return HasAnyPermission(actor, r.Permissions...)
	case ModeAll:
		return HasAllPermissions(actor, r.Permissions...)
	default:
		return false
	}
}

// Strings returns the required permissions as plain strings.
func (r Requirement) Strings() []string {
	out := make([]string, len(r.Permissions))
	for i, p := range r.Permissions {
		out[i] = string(p)
	}
	return out
}
