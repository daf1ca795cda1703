package models

import (
	"encoding/json"
	"sort"
)

// IdentifierType names a kind of business identifier.
type IdentifierType string

const (
	IdentifierEntity      IdentifierType = "entity_id"
	IdentifierTracking    IdentifierType = "tracking_id"
	IdentifierRequest     IdentifierType = "request_id"
	IdentifierCompany     IdentifierType = "company_id"
	IdentifierCompanyName IdentifierType = "company_name"
	IdentifierCorrelation IdentifierType = "correlation_id"
)

// Provenance records how an identifier value was obtained.
type Provenance string

const (
	// ProvenanceProvided marks identifiers supplied explicitly by the caller.
	ProvenanceProvided Provenance = "provided"
	// ProvenanceConfirmed marks identifiers validated against the warehouse.
	ProvenanceConfirmed Provenance = "confirmed"
	// ProvenanceInferred marks identifiers extracted from text without confirmation.
	ProvenanceInferred Provenance = "inferred"
)

// Authoritative reports whether the provenance may not be replaced by inference.
func (p Provenance) Authoritative() bool {
	return p == ProvenanceProvided || p == ProvenanceConfirmed
}

// Identifier is a single typed identifier value.
type Identifier struct {
	Type       IdentifierType `json:"type"`
	Value      string         `json:"value"`
	Confidence float64        `json:"confidence"`
	Provenance Provenance     `json:"provenance"`
	Source     string         `json:"source,omitempty"`
}

// IdentifierSet maps identifier types to their best known value.
// Authoritative values are never replaced by inferred ones.
type IdentifierSet struct {
	items map[IdentifierType]Identifier
	order []IdentifierType
}

// NewIdentifierSet builds a set from the supplied identifiers, applying Add semantics in order.
func NewIdentifierSet(ids ...Identifier) IdentifierSet {
	set := IdentifierSet{}
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Add merges id into the set and reports whether the stored value changed.
//
// An authoritative value only yields to another authoritative value for the same type when the
// existing one was merely provided and the newcomer is warehouse-confirmed with the same value.
// Inferred values replace other inferred values only with strictly higher confidence.
func (s *IdentifierSet) Add(id Identifier) bool {
	if id.Type == "" || id.Value == "" {
		return false
	}
	if id.Provenance == "" {
		id.Provenance = ProvenanceInferred
	}
	if s.items == nil {
		s.items = make(map[IdentifierType]Identifier)
	}

	existing, ok := s.items[id.Type]
	if !ok {
		s.items[id.Type] = id
		s.order = append(s.order, id.Type)
		return true
	}

	switch {
	case existing.Provenance.Authoritative() && !id.Provenance.Authoritative():
		return false
	case existing.Provenance.Authoritative():
		if existing.Provenance == ProvenanceProvided && id.Provenance == ProvenanceConfirmed && existing.Value == id.Value {
			s.items[id.Type] = id
			return true
		}
		return false
	case id.Provenance.Authoritative():
		s.items[id.Type] = id
		return true
	case id.Confidence > existing.Confidence:
		s.items[id.Type] = id
		return true
	default:
		return false
	}
}

// Get returns the identifier stored for t.
func (s IdentifierSet) Get(t IdentifierType) (Identifier, bool) {
	id, ok := s.items[t]
	return id, ok
}

// Value returns the stored value for t or an empty string.
func (s IdentifierSet) Value(t IdentifierType) string {
	return s.items[t].Value
}

// Len returns the number of identifier types present.
func (s IdentifierSet) Len() int {
	return len(s.items)
}

// All returns identifiers in insertion order.
func (s IdentifierSet) All() []Identifier {
	out := make([]Identifier, 0, len(s.order))
	for _, t := range s.order {
		out = append(out, s.items[t])
	}
	return out
}

// Confirmed returns authoritative identifiers in insertion order.
func (s IdentifierSet) Confirmed() []Identifier {
	out := make([]Identifier, 0, len(s.order))
	for _, t := range s.order {
		if id := s.items[t]; id.Provenance.Authoritative() {
			out = append(out, id)
		}
	}
	return out
}

// Values returns every identifier value, sorted, for use as free-text search terms.
func (s IdentifierSet) Values() []string {
	out := make([]string, 0, len(s.items))
	for _, id := range s.items {
		out = append(out, id.Value)
	}
	sort.Strings(out)
	return out
}

// PrimaryEntity returns the value that best identifies the investigated entity.
func (s IdentifierSet) PrimaryEntity() string {
	for _, t := range []IdentifierType{IdentifierEntity, IdentifierTracking, IdentifierRequest} {
		if v := s.Value(t); v != "" {
			return v
		}
	}
	return ""
}

// Clone returns an independent copy of the set.
func (s IdentifierSet) Clone() IdentifierSet {
	out := IdentifierSet{
		items: make(map[IdentifierType]Identifier, len(s.items)),
		order: append([]IdentifierType(nil), s.order...),
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	return out
}

// MarshalJSON encodes the set as an ordered list.
func (s IdentifierSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.All())
}
