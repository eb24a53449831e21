package domain

import "github.com/google/uuid"

// IdentityKind discriminates the two shapes an authenticated actor can take
// (spec §9: "map to a sum type; do not try to model via inheritance").
type IdentityKind string

const (
	IdentityUser   IdentityKind = "user"
	IdentityClient IdentityKind = "client"
)

// Identity is the authenticated actor of a request: either an interactive
// user or a client's service account. Policy code discriminates once via
// Kind and then always operates on the resolved User (see
// internal/service.ResolveUser).
type Identity struct {
	Kind     IdentityKind
	UserID   uuid.UUID // set when Kind == IdentityUser
	ClientID uuid.UUID // set when Kind == IdentityClient
}

// NewUserIdentity builds an Identity for an interactively authenticated user.
func NewUserIdentity(userID uuid.UUID) Identity {
	return Identity{Kind: IdentityUser, UserID: userID}
}

// NewClientIdentity builds an Identity for a client_credentials caller.
func NewClientIdentity(clientID uuid.UUID) Identity {
	return Identity{Kind: IdentityClient, ClientID: clientID}
}
