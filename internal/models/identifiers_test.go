package models

import (
	"encoding/json"
	"testing"
)

func TestIdentifierSetNeverDemotesConfirmed(t *testing.T) {
	set := NewIdentifierSet(Identifier{Type: IdentifierTracking, Value: "610038256", Confidence: 1, Provenance: ProvenanceConfirmed})

	cases := []Identifier{
		{Type: IdentifierTracking, Value: "999", Confidence: 0.99, Provenance: ProvenanceInferred},
		{Type: IdentifierTracking, Value: "610038256", Confidence: 1, Provenance: ProvenanceInferred},
		{Type: IdentifierTracking, Value: "123", Confidence: 1},
	}
	for _, c := range cases {
		if set.Add(c) {
			t.Fatalf("expected inferred %q to be rejected", c.Value)
		}
	}

	got, ok := set.Get(IdentifierTracking)
	if !ok || got.Value != "610038256" || got.Provenance != ProvenanceConfirmed {
		t.Fatalf("confirmed value was demoted: %+v", got)
	}
}

func TestIdentifierSetUpgradesInferred(t *testing.T) {
	var set IdentifierSet
	set.Add(Identifier{Type: IdentifierCompanyName, Value: "Acme", Confidence: 0.4, Provenance: ProvenanceInferred})

	if set.Add(Identifier{Type: IdentifierCompanyName, Value: "Acme Corp", Confidence: 0.3, Provenance: ProvenanceInferred}) {
		t.Fatalf("lower-confidence inference must not replace")
	}
	if !set.Add(Identifier{Type: IdentifierCompanyName, Value: "Acme Corp", Confidence: 0.7, Provenance: ProvenanceInferred}) {
		t.Fatalf("higher-confidence inference should replace")
	}
	if !set.Add(Identifier{Type: IdentifierCompanyName, Value: "ACME", Confidence: 1, Provenance: ProvenanceConfirmed}) {
		t.Fatalf("confirmation should replace inference")
	}
	if set.Value(IdentifierCompanyName) != "ACME" {
		t.Fatalf("unexpected value %q", set.Value(IdentifierCompanyName))
	}
}

func TestIdentifierSetProvidedPromotedOnlyBySameValue(t *testing.T) {
	set := NewIdentifierSet(Identifier{Type: IdentifierRequest, Value: "r-1", Confidence: 1, Provenance: ProvenanceProvided})

	if set.Add(Identifier{Type: IdentifierRequest, Value: "r-2", Confidence: 1, Provenance: ProvenanceConfirmed}) {
		t.Fatalf("confirmed value must not replace a different provided value")
	}
	if !set.Add(Identifier{Type: IdentifierRequest, Value: "r-1", Confidence: 1, Provenance: ProvenanceConfirmed, Source: "entities"}) {
		t.Fatalf("expected provided value to be marked confirmed")
	}
	if id, _ := set.Get(IdentifierRequest); id.Source != "entities" {
		t.Fatalf("expected confirmation source, got %+v", id)
	}
}

func TestIdentifierSetOrderingAndJSON(t *testing.T) {
	set := NewIdentifierSet(
		Identifier{Type: IdentifierTracking, Value: "1", Provenance: ProvenanceProvided},
		Identifier{Type: IdentifierCompanyName, Value: "Acme", Confidence: 0.5},
		Identifier{Type: IdentifierEntity, Value: "e-1", Provenance: ProvenanceConfirmed},
	)
	if set.PrimaryEntity() != "e-1" {
		t.Fatalf("expected entity id to be primary, got %q", set.PrimaryEntity())
	}
	if got := len(set.Confirmed()); got != 2 {
		t.Fatalf("expected 2 confirmed, got %d", got)
	}

	raw, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []Identifier
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 3 || decoded[0].Type != IdentifierTracking || decoded[2].Type != IdentifierEntity {
		t.Fatalf("unexpected order: %+v", decoded)
	}

	clone := set.Clone()
	clone.Add(Identifier{Type: IdentifierRequest, Value: "r", Provenance: ProvenanceProvided})
	if set.Len() != 3 {
		t.Fatalf("clone mutated original")
	}
}
