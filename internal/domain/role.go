package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/policy"
)

// Role is a named bundle of permissions, either client-scoped (ClientID set)
// or realm-scoped.
type Role struct {
	ID          uuid.UUID     `json:"id"`
	RealmID     uuid.UUID     `json:"realm_id"`
	ClientID    *uuid.UUID    `json:"client_id,omitempty"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Permissions policy.Set    `json:"-"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// PermissionNames returns the on-disk canonical names for r's permissions.
func (r Role) PermissionNames() []string {
	return policy.Names(r.Permissions)
}

// IsClientScoped reports whether the role belongs to a specific client
// rather than being realm-wide.
func (r Role) IsClientScoped() bool { return r.ClientID != nil }
