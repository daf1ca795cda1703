package models

import "time"

// Severity ranks timeline events.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Timeline branch keys registered by default.
const (
	BranchCreationSource  = "creation_source"
	BranchFileStats       = "file_stats"
	BranchProcessingStats = "processing_stats"
	BranchOutboundCalls   = "outbound_calls"
	BranchErrorSummary    = "error_summary"
	BranchNetworkStatus   = "network_status"
)

// Row is one warehouse result row keyed by column name.
type Row map[string]string

// TimelineEvent is a timestamped output of one branch.
type TimelineEvent struct {
	Time       time.Time         `json:"time"`
	Branch     string            `json:"branch"`
	Event      string            `json:"event"`
	Severity   Severity          `json:"severity"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// BranchResult is the outcome of one timeline branch. Err is set when the branch failed.
type BranchResult struct {
	Key      string          `json:"key"`
	Rows     []Row           `json:"rows,omitempty"`
	Events   []TimelineEvent `json:"events,omitempty"`
	Err      *Marker         `json:"error,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// TimelineResult is the merged chronological view of one entity.
type TimelineResult struct {
	EntityID    string                  `json:"entity_id"`
	ResolvedKey string                  `json:"resolved_key,omitempty"`
	State       *EntityState            `json:"state,omitempty"`
	Branches    map[string]BranchResult `json:"branches"`
	Events      []TimelineEvent         `json:"events"`
	Markers     []Marker                `json:"markers,omitempty"`
	Partial     bool                    `json:"partial"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// Failed returns the keys of branches that carry an error marker.
func (t TimelineResult) Failed() []string {
	var out []string
	for k, b := range t.Branches {
		if b.Err != nil {
			out = append(out, k)
		}
	}
	return out
}
