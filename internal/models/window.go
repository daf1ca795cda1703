package models

import (
	"fmt"
	"time"
)

// WindowTier ranks how the investigation window was derived, 1 being most precise.
type WindowTier int

const (
	TierLifecycle  WindowTier = 1
	TierValidation WindowTier = 2
	TierSourceText WindowTier = 3
	TierReportTime WindowTier = 4
)

func (t WindowTier) String() string {
	switch t {
	case TierLifecycle:
		return "lifecycle"
	case TierValidation:
		return "validation_errors"
	case TierSourceText:
		return "source_text"
	case TierReportTime:
		return "report_time"
	default:
		return fmt.Sprintf("tier_%d", int(t))
	}
}

// TimeRange bounds a query interval, end exclusive.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Window is the investigation time range chosen once per run.
type Window struct {
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	Tier            WindowTier `json:"tier"`
	Reason          string     `json:"reason"`
	Expanded        bool       `json:"expanded,omitempty"`
	ExpansionReason string     `json:"expansion_reason,omitempty"`
}

// NewWindow validates start < end and returns a Window in UTC.
func NewWindow(start, end time.Time, tier WindowTier, reason string) (Window, error) {
	if start.IsZero() || end.IsZero() {
		return Window{}, fmt.Errorf("window bounds must be set")
	}
	if !start.Before(end) {
		return Window{}, fmt.Errorf("window start %s must precede end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Window{Start: start.UTC(), End: end.UTC(), Tier: tier, Reason: reason}, nil
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether t falls within [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Range returns the window as a TimeRange.
func (w Window) Range() TimeRange {
	return TimeRange{Start: w.Start, End: w.End}
}
