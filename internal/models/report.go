package models

import (
	"fmt"
	"strings"
	"time"
)

// ReasonCode summarises how an investigation ended.
type ReasonCode string

const (
	ReasonCompleted         ReasonCode = "COMPLETED"
	ReasonNoEvidence        ReasonCode = "NO_EVIDENCE"
	ReasonRetentionExceeded ReasonCode = "RETENTION_EXCEEDED"
)

// Likelihood grades the hypothesis by corroboration.
type Likelihood string

const (
	LikelihoodLow      Likelihood = "low"
	LikelihoodMedium   Likelihood = "medium"
	LikelihoodHigh     Likelihood = "high"
	LikelihoodVeryHigh Likelihood = "very_high"
)

// Hypothesis is the single root-cause statement of a report.
type Hypothesis struct {
	PatternID     string     `json:"pattern_id"`
	Statement     string     `json:"statement"`
	Verdict       Verdict    `json:"verdict"`
	Likelihood    Likelihood `json:"likelihood"`
	Corroborating int        `json:"corroborating"`
	Confidence    float64    `json:"confidence"`
}

// PatternSummary pairs a cluster with its classification.
type PatternSummary struct {
	Rank           int            `json:"rank"`
	Cluster        PatternCluster `json:"cluster"`
	Classification Classification `json:"classification"`
	Bursts         []Burst        `json:"bursts,omitempty"`
}

// VerdictCounts tallies classifications.
type VerdictCounts struct {
	Expected  int `json:"expected_behavior"`
	RealError int `json:"real_error"`
	Unknown   int `json:"unknown"`
}

// Report is the structured outcome of one investigation.
type Report struct {
	RunID         string           `json:"run_id"`
	Reason        ReasonCode       `json:"reason"`
	Summary       string           `json:"summary"`
	Identifiers   []Identifier     `json:"identifiers"`
	Window        *Window          `json:"window,omitempty"`
	Backend       Backend          `json:"backend,omitempty"`
	EvidenceCount int              `json:"evidence_count"`
	TracedCount   int              `json:"traced_count"`
	ClusterCount  int              `json:"cluster_count"`
	Patterns      []PatternSummary `json:"patterns,omitempty"`
	Counts        VerdictCounts    `json:"counts"`
	Hypothesis    *Hypothesis      `json:"hypothesis,omitempty"`
	Remediation   []string         `json:"remediation,omitempty"`
	Markers       []Marker         `json:"markers,omitempty"`
	Partial       bool             `json:"partial"`
	StartedAt     time.Time        `json:"started_at"`
	CompletedAt   time.Time        `json:"completed_at"`
}

// Terminal reports whether the run halted before classification.
func (r Report) Terminal() bool {
	return r.Reason == ReasonNoEvidence || r.Reason == ReasonRetentionExceeded
}

// Render produces the plain-text form of the report.
func (r Report) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Investigation %s: %s\n", r.RunID, r.Reason)
	if r.Summary != "" {
		fmt.Fprintf(&b, "%s\n", r.Summary)
	}
	if r.Window != nil {
		fmt.Fprintf(&b, "Window: %s .. %s (tier %d, %s)\n",
			r.Window.Start.Format(time.RFC3339), r.Window.End.Format(time.RFC3339), int(r.Window.Tier), r.Window.Reason)
		if r.Window.Expanded {
			fmt.Fprintf(&b, "  expanded: %s\n", r.Window.ExpansionReason)
		}
	}
	if len(r.Identifiers) > 0 {
		b.WriteString("Identifiers:\n")
		for _, id := range r.Identifiers {
			fmt.Fprintf(&b, "  %s=%s (%s)\n", id.Type, id.Value, id.Provenance)
		}
	}
	if !r.Terminal() {
		fmt.Fprintf(&b, "Evidence: %d records (%d via correlation tracing) from %s store, %d patterns\n",
			r.EvidenceCount, r.TracedCount, r.Backend, r.ClusterCount)
	}
	if r.Hypothesis != nil {
		fmt.Fprintf(&b, "Hypothesis [%s]: %s\n", r.Hypothesis.Likelihood, r.Hypothesis.Statement)
	}
	if len(r.Patterns) > 0 {
		fmt.Fprintf(&b, "Verdicts: %d real_error, %d expected_behavior, %d unknown\n",
			r.Counts.RealError, r.Counts.Expected, r.Counts.Unknown)
		for _, p := range r.Patterns {
			fmt.Fprintf(&b, "  #%d %-17s x%-5d %.2f  %s\n", p.Rank, p.Classification.Verdict, p.Cluster.Count,
				p.Classification.Confidence, p.Cluster.TemplateString())
			if ref := p.Classification.CodeReference; ref != nil {
				fmt.Fprintf(&b, "      code: %s/%s %s\n", ref.Repo, ref.File, ref.Symbol)
			}
			if p.Classification.Explanation != "" {
				fmt.Fprintf(&b, "      %s\n", p.Classification.Explanation)
			}
		}
	}
	if len(r.Remediation) > 0 {
		b.WriteString("Next steps:\n")
		for _, s := range r.Remediation {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	if len(r.Markers) > 0 {
		b.WriteString("Partial results:\n")
		for _, m := range r.Markers {
			fmt.Fprintf(&b, "  ! %s\n", m.Error())
		}
	}
	return b.String()
}
