package models

import "time"

// WarehouseMatch is an authoritative hit for an identifier value.
type WarehouseMatch struct {
	EntityID  string         `json:"entity_id"`
	Type      IdentifierType `json:"type"`
	Value     string         `json:"value"`
	Table     string         `json:"table"`
	CompanyID string         `json:"company_id,omitempty"`
	At        time.Time      `json:"at"`
}

// Company is a warehouse company row.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Lifecycle holds the authoritative creation and termination times of an entity.
// TerminatedAt is zero while the entity is still active.
type Lifecycle struct {
	EntityID     string    `json:"entity_id"`
	CreatedAt    time.Time `json:"created_at"`
	TerminatedAt time.Time `json:"terminated_at,omitempty"`
}

// ValidationError is one recorded validation failure for an entity.
type ValidationError struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EntityRecord is the warehouse view of an entity's current state.
type EntityRecord struct {
	EntityID  string    `json:"entity_id"`
	State     string    `json:"state"`
	CompanyID string    `json:"company_id,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
