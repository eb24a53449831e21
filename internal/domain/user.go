package domain

import (
	"time"

	"github.com/google/uuid"
)

// RequiredAction is a pending obligation that blocks token issuance until
// fulfilled (spec §3, §4.3).
type RequiredAction string

const (
	RequiredActionConfigureOTP  RequiredAction = "CONFIGURE_OTP"
	RequiredActionVerifyEmail   RequiredAction = "VERIFY_EMAIL"
	RequiredActionUpdatePassword RequiredAction = "UPDATE_PASSWORD"
)

// User is a realm-scoped principal: either an interactive end user or a
// service account (ClientID set) acting on behalf of a confidential client.
type User struct {
	ID               uuid.UUID        `json:"id"`
	RealmID          uuid.UUID        `json:"realm_id"`
	ClientID         *uuid.UUID       `json:"client_id,omitempty"`
	Username         string           `json:"username"`
	Email            string           `json:"email"`
	EmailVerified    bool             `json:"email_verified"`
	Enabled          bool             `json:"enabled"`
	Firstname        string           `json:"firstname"`
	Lastname         string           `json:"lastname"`
	RequiredActions  []RequiredAction `json:"required_actions"`
	Roles            []Role           `json:"roles,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// IsServiceAccount reports whether u represents a client's service account.
func (u User) IsServiceAccount() bool { return u.ClientID != nil }

// HasRequiredActions reports whether any required action is pending — such
// a user cannot complete token issuance through an interactive grant
// (spec §3 invariant).
func (u User) HasRequiredActions() bool { return len(u.RequiredActions) > 0 }

// RemoveRequiredAction returns a copy of actions with ra removed.
func RemoveRequiredAction(actions []RequiredAction, ra RequiredAction) []RequiredAction {
	out := make([]RequiredAction, 0, len(actions))
	for _, a := range actions {
		if a != ra {
			out = append(out, a)
		}
	}
	return out
}
