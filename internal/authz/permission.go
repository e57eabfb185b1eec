package authz

import (
	"fmt"
	"strings"
)

// Scope is the last segment of a permission string.
type Scope string

const (
	ScopeTenant  Scope = "tenant"
	ScopeBranch  Scope = "branch"
	ScopeOwn     Scope = "own"
	ScopeDefault Scope = "default"
)

var validScopes = map[Scope]bool{
	ScopeTenant:  true,
	ScopeBranch:  true,
	ScopeOwn:     true,
	ScopeDefault: true,
}

// Permission is a capability string of the form resource:action:scope.
// Matching is exact; there are no wildcards and no scope hierarchy, so
// user:delete:tenant is a different capability from user:delete:branch.
type Permission string

// ParsePermission validates s and returns it as a Permission.
func ParsePermission(s string) (Permission, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: %q must have resource:action:scope", ErrInvalidPermission, s)
	}
	for _, part := range parts[:2] {
		if !validSegment(part) {
			return "", fmt.Errorf("%w: %q has an empty or malformed segment", ErrInvalidPermission, s)
		}
	}
	if !validScopes[Scope(parts[2])] {
		return "", fmt.Errorf("%w: %q in %q", ErrInvalidScope, parts[2], s)
	}
	return Permission(s), nil
}

// MustPermission is ParsePermission for static declarations; it panics on
// malformed input so typos in route tables fail at startup.
func MustPermission(s string) Permission {
	p, err := ParsePermission(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePermissions validates every entry and returns the first error.
func ParsePermissions(values []string) ([]Permission, error) {
	out := make([]Permission, 0, len(values))
	for _, v := range values {
		p, err := ParsePermission(v)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (p Permission) String() string {
	return string(p)
}

// Resource returns the first segment, or "" if p is malformed.
func (p Permission) Resource() string {
	parts := strings.SplitN(string(p), ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return parts[0]
}

// Action returns the second segment, or "" if p is malformed.
func (p Permission) Action() string {
	parts := strings.SplitN(string(p), ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}

// Scope returns the third segment, or "" if p is malformed.
func (p Permission) Scope() Scope {
	parts := strings.SplitN(string(p), ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return Scope(parts[2])
}

// WithScope returns p with its scope segment replaced, or "" if p is
// malformed.
func (p Permission) WithScope(scope Scope) Permission {
	if !p.Valid() {
		return ""
	}
	return Permission(p.Resource() + ":" + p.Action() + ":" + string(scope))
}

// Valid reports whether p is well formed.
func (p Permission) Valid() bool {
	_, err := ParsePermission(string(p))
	return err == nil
}

// segments are lowercase ascii words; underscores and hyphens allowed inside
func validSegment(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case (r == '_' || r == '-') && i > 0 && i < len(s)-1:
		default:
			return false
		}
	}
	return true
}
