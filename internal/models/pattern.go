package models

import (
	"strings"
	"time"
)

// Wildcard marks a template position whose tokens disagreed across members.
const Wildcard = "<*>"

// PatternCluster generalises a group of structurally similar records.
type PatternCluster struct {
	ID             string           `json:"id"`
	Template       []string         `json:"template"`
	Count          int              `json:"count"`
	Representative EvidenceRecord   `json:"representative"`
	FirstSeen      time.Time        `json:"first_seen"`
	LastSeen       time.Time        `json:"last_seen"`
	Services       []string         `json:"services,omitempty"`
	Severities     map[LogLevel]int `json:"severities,omitempty"`
	CorrelationIDs []string         `json:"correlation_ids,omitempty"`
	// Buckets counts members per unix minute.
	Buckets map[int64]int `json:"-"`
}

// TemplateString joins the template tokens.
func (c PatternCluster) TemplateString() string {
	return strings.Join(c.Template, " ")
}

// ErrorShare returns the fraction of members logged at error or fatal level.
func (c PatternCluster) ErrorShare() float64 {
	if c.Count == 0 {
		return 0
	}
	errs := c.Severities[LevelError] + c.Severities[LevelFatal]
	return float64(errs) / float64(c.Count)
}

// Burst is a minute bucket whose volume stands out from the cluster baseline.
type Burst struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
	Score float64   `json:"score"`
}
