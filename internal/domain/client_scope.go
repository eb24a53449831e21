package domain

import (
	"time"

	"github.com/google/uuid"
)

// MapperBindingType controls whether a protocol mapper's scope is always
// included in an issued token or only when requested via the scope param.
type MapperBindingType string

const (
	BindingDefault  MapperBindingType = "default"
	BindingOptional MapperBindingType = "optional"
)

// ClientScope is a named bundle of protocol mappers used to shape OIDC
// claims (spec §3).
type ClientScope struct {
	ID          uuid.UUID `json:"id"`
	RealmID     uuid.UUID `json:"realm_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Protocol    string    `json:"protocol"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProtocolMapper shapes a single claim contributed by a ClientScope. Named in
// spec §3 without a shape; restored from original_source's aegis domain
// (protocol_mapper_service.rs).
type ProtocolMapper struct {
	ID            uuid.UUID              `json:"id"`
	ClientScopeID uuid.UUID              `json:"client_scope_id"`
	Name          string                 `json:"name"`
	MapperType    string                 `json:"mapper_type"`
	Config        map[string]interface{} `json:"config"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// ClientScopeMapping binds a ClientScope to a Client as default or optional.
type ClientScopeMapping struct {
	ClientID      uuid.UUID         `json:"client_id"`
	ClientScopeID uuid.UUID         `json:"client_scope_id"`
	Binding       MapperBindingType `json:"binding"`
}
