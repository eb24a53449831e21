package domain

import (
	"time"

	"github.com/google/uuid"
)

// SecurityEvent is an append-only audit record emitted by the core for
// every authentication-relevant action (spec §3, §4.5).
type SecurityEvent struct {
	ID        uuid.UUID  `json:"id"`
	RealmID   uuid.UUID  `json:"realm_id"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	ActorType string     `json:"actor_type,omitempty"`
	EventType string     `json:"event_type"`
	Status    string     `json:"status"`
	TargetID  string     `json:"target_id,omitempty"`
	TargetType string    `json:"target_type,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	IP        string     `json:"ip,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Event type constants referenced by the grant/auth services (spec §4.5).
const (
	EventLoginSuccess = "login_success"
	EventLoginFailure = "login_failure"
)

// Webhook is the pluggable delivery target for SecurityEvents (spec §1,
// supplemented from original_source's webhook aggregate).
type Webhook struct {
	ID                uuid.UUID `json:"id"`
	RealmID           uuid.UUID `json:"realm_id"`
	Name              string    `json:"name"`
	Endpoint          string    `json:"endpoint"`
	SubscribedEvents  []string  `json:"subscribed_events"`
	Enabled           bool      `json:"enabled"`
	Secret            string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
