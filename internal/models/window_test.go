package models

import (
	"testing"
	"time"
)

func TestNewWindowRejectsInvertedBounds(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := NewWindow(now, now, TierReportTime, "equal"); err == nil {
		t.Fatalf("expected error for empty window")
	}
	if _, err := NewWindow(now, now.Add(-time.Minute), TierReportTime, "inverted"); err == nil {
		t.Fatalf("expected error for inverted window")
	}
	if _, err := NewWindow(time.Time{}, now, TierReportTime, "zero"); err == nil {
		t.Fatalf("expected error for zero start")
	}

	w, err := NewWindow(now, now.Add(2*time.Hour), TierSourceText, "dates")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Duration() != 2*time.Hour || !w.Contains(now.Add(time.Hour)) || w.Contains(now.Add(3*time.Hour)) {
		t.Fatalf("unexpected window %+v", w)
	}
	if w.Tier.String() != "source_text" {
		t.Fatalf("unexpected tier name %q", w.Tier)
	}
}

func TestOptionsContextPrefersDeadline(t *testing.T) {
	deadline := time.Now().Add(time.Minute)
	ctx, cancel := Options{Deadline: deadline, Budget: time.Hour}.Context(t.Context())
	defer cancel()
	got, ok := ctx.Deadline()
	if !ok || !got.Equal(deadline) {
		t.Fatalf("expected deadline %v, got %v", deadline, got)
	}
}
