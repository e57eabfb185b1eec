package authz

import "sort"

// Actor is the authenticated principal of a request. It is built once
// from a verified token and not mutated afterwards.
type Actor struct {
	ID          string
	TenantID    string
	BranchID    string
	Email       string
	Roles       []string
	permissions map[Permission]struct{}
}

// NewActor builds an actor from the final permission strings carried in
// its token. Duplicates collapse. Entries are stored verbatim; malformed
// strings can never equal a well-formed requirement, so they are inert.
func NewActor(id, tenantID, branchID string, permissions []string) *Actor {
	set := make(map[Permission]struct{}, len(permissions))
	for _, p := range permissions {
		set[Permission(p)] = struct{}{}
	}
	return &Actor{
		ID:          id,
		TenantID:    tenantID,
		BranchID:    branchID,
		permissions: set,
	}
}

// Permissions returns a sorted copy of the actor's permission set.
func (a *Actor) Permissions() []string {
	if a == nil {
		return nil
	}
	out := make([]string, 0, len(a.permissions))
	for p := range a.permissions {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

func (a *Actor) has(p Permission) bool {
	_, ok := a.permissions[p]
	return ok
}
