package models

import "sort"

// Identity is the authenticated principal for a single request.
// It is built from token claims or a user lookup and never persisted.
type Identity struct {
	UserID      string
	Email       string
	Active      bool
	Privileged  bool
	Permissions map[string]struct{}
}

// NewIdentity creates an Identity with the given permission set
func NewIdentity(userID, email string, active, privileged bool, permissions []string) *Identity {
	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	return &Identity{
		UserID:      userID,
		Email:       email,
		Active:      active,
		Privileged:  privileged,
		Permissions: set,
	}
}

// HasPermission reports exact membership of permission in the granted set.
// Privilege is not considered here.
func (i *Identity) HasPermission(permission string) bool {
	_, ok := i.Permissions[permission]
	return ok
}

// PermissionList returns the granted permissions in sorted order
func (i *Identity) PermissionList() []string {
	out := make([]string, 0, len(i.Permissions))
	for p := range i.Permissions {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
