package models

import (
	"context"
	"time"
)

// Options bound a single call.
type Options struct {
	// Deadline wins over Budget when both are set.
	Deadline           time.Time     `json:"deadline,omitempty"`
	Budget             time.Duration `json:"budget,omitempty"`
	MaxClusters        int           `json:"max_clusters,omitempty"`
	SkipClassification bool          `json:"skip_classification,omitempty"`
}

// Context derives a context honouring the deadline or budget.
func (o Options) Context(parent context.Context) (context.Context, context.CancelFunc) {
	switch {
	case !o.Deadline.IsZero():
		return context.WithDeadline(parent, o.Deadline)
	case o.Budget > 0:
		return context.WithTimeout(parent, o.Budget)
	default:
		return context.WithCancel(parent)
	}
}

// InvestigationRequest starts an RCA run from a description and/or explicit identifiers.
type InvestigationRequest struct {
	Description string                    `json:"description"`
	Identifiers map[IdentifierType]string `json:"identifiers,omitempty"`
	Services    []string                  `json:"services,omitempty"`
	Keywords    []string                  `json:"keywords,omitempty"`
	ReportedAt  time.Time                 `json:"reported_at,omitempty"`
	Options     Options                   `json:"options"`
}

// TimelineRequest asks for the merged timeline of one entity.
// CompoundKey is resolved through the warehouse when EntityID is empty.
type TimelineRequest struct {
	EntityID    string  `json:"entity_id,omitempty"`
	CompoundKey string  `json:"compound_key,omitempty"`
	Options     Options `json:"options"`
}
