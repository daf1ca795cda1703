package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/extractors"
	"github.com/miradorstack/mirador-investigator/internal/models"
)

// ReportInput carries everything a completed run hands to the ReportBuilder. Clusters and
// Classifications are index-aligned.
type ReportInput struct {
	RunID           string
	StartedAt       time.Time
	Identifiers     []models.Identifier
	Window          *models.Window
	Backend         models.Backend
	EvidenceCount   int
	TracedCount     int
	Clusters        []models.PatternCluster
	Classifications []models.Classification
	Markers         []models.Marker
}

// ReportBuilder turns classified clusters into a ranked report with a single hypothesis.
type ReportBuilder struct {
	cfg            config.ReportConfig
	burstThreshold float64
	rules          *RuleEngine
	now            func() time.Time
}

// NewReportBuilder constructs a builder. A nil rule engine falls back to default remediation.
func NewReportBuilder(cfg config.ReportConfig, burstThreshold float64, rules *RuleEngine) *ReportBuilder {
	if cfg.MediumAt <= 0 {
		cfg.MediumAt = 1
	}
	if cfg.HighAt < cfg.MediumAt {
		cfg.HighAt = cfg.MediumAt + 1
	}
	if cfg.VeryHighAt < cfg.HighAt {
		cfg.VeryHighAt = cfg.HighAt + 1
	}
	return &ReportBuilder{cfg: cfg, burstThreshold: burstThreshold, rules: rules, now: time.Now}
}

// Build assembles a completed report.
func (b *ReportBuilder) Build(in ReportInput) models.Report {
	report := b.base(in, models.ReasonCompleted)
	report.EvidenceCount = in.EvidenceCount
	report.TracedCount = in.TracedCount
	report.ClusterCount = len(in.Clusters)

	summaries := make([]models.PatternSummary, len(in.Clusters))
	for i, cl := range in.Clusters {
		cls := models.Classification{PatternID: cl.ID, Verdict: models.VerdictUnknown}
		if i < len(in.Classifications) {
			cls = in.Classifications[i]
		}
		summaries[i] = models.PatternSummary{
			Cluster:        cl,
			Classification: cls,
			Bursts:         extractors.DetectBursts(cl.Buckets, b.burstThreshold),
		}
		report.Markers = append(report.Markers, cls.Markers...)
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Cluster.Count > summaries[j].Cluster.Count
	})
	for i := range summaries {
		summaries[i].Rank = i + 1
		switch summaries[i].Classification.Verdict {
		case models.VerdictRealError:
			report.Counts.RealError++
		case models.VerdictExpected:
			report.Counts.Expected++
		default:
			report.Counts.Unknown++
		}
	}
	report.Patterns = summaries
	report.Hypothesis = b.hypothesis(summaries, report.Counts.RealError)
	report.Summary = fmt.Sprintf("%d records grouped into %d patterns: %d real_error, %d expected_behavior, %d unknown",
		report.EvidenceCount, report.ClusterCount, report.Counts.RealError, report.Counts.Expected, report.Counts.Unknown)
	report.Partial = len(report.Markers) > 0
	report.Remediation = b.remediation(report)
	report.CompletedAt = b.now()
	return report
}

// Terminal assembles a report for a run that halted before classification.
func (b *ReportBuilder) Terminal(in ReportInput, reason models.ReasonCode, cause error) models.Report {
	report := b.base(in, reason)
	switch reason {
	case models.ReasonNoEvidence:
		report.Summary = "No evidence was found for the resolved identifiers in the selected window"
	case models.ReasonRetentionExceeded:
		report.Summary = "The selected window is older than every configured log store retains"
	default:
		report.Summary = string(reason)
	}
	if cause != nil {
		report.Summary += ": " + cause.Error()
	}
	report.Partial = len(report.Markers) > 0
	report.Remediation = b.remediation(report)
	report.CompletedAt = b.now()
	return report
}

func (b *ReportBuilder) base(in ReportInput, reason models.ReasonCode) models.Report {
	return models.Report{
		RunID:       in.RunID,
		Reason:      reason,
		Identifiers: in.Identifiers,
		Window:      in.Window,
		Backend:     in.Backend,
		Markers:     append([]models.Marker(nil), in.Markers...),
		StartedAt:   in.StartedAt,
	}
}

func (b *ReportBuilder) remediation(report models.Report) []string {
	if steps := b.rules.Recommend(report); len(steps) > 0 {
		return steps
	}
	return defaultRemediation(report.Reason)
}

// hypothesis picks the highest-count real_error cluster, or the highest-count cluster when none was
// judged a real error. summaries must already be ranked.
func (b *ReportBuilder) hypothesis(summaries []models.PatternSummary, realErrors int) *models.Hypothesis {
	if len(summaries) == 0 {
		return nil
	}
	top := summaries[0]
	for _, s := range summaries {
		if s.Classification.Verdict == models.VerdictRealError {
			top = s
			break
		}
	}
	h := &models.Hypothesis{
		PatternID:     top.Cluster.ID,
		Verdict:       top.Classification.Verdict,
		Likelihood:    b.Likelihood(realErrors),
		Corroborating: realErrors,
		Confidence:    top.Classification.Confidence,
	}
	where := ""
	if len(top.Cluster.Services) > 0 {
		where = " in " + strings.Join(top.Cluster.Services, ", ")
	}
	if top.Classification.Verdict == models.VerdictRealError {
		h.Statement = fmt.Sprintf("%q (%d occurrences%s) is the most frequent real error", top.Cluster.TemplateString(), top.Cluster.Count, where)
		if ref := top.Classification.CodeReference; ref != nil {
			h.Statement += fmt.Sprintf(", raised from %s/%s", ref.Repo, ref.File)
		}
	} else {
		h.Statement = fmt.Sprintf("No pattern was judged a real error; the most frequent is %q (%d occurrences%s, %s)",
			top.Cluster.TemplateString(), top.Cluster.Count, where, top.Classification.Verdict)
	}
	if top.Classification.Explanation != "" {
		h.Statement += ". " + top.Classification.Explanation
	}
	return h
}

// Likelihood grades a hypothesis by how many clusters were judged real errors.
func (b *ReportBuilder) Likelihood(realErrors int) models.Likelihood {
	switch {
	case realErrors >= b.cfg.VeryHighAt:
		return models.LikelihoodVeryHigh
	case realErrors >= b.cfg.HighAt:
		return models.LikelihoodHigh
	case realErrors >= b.cfg.MediumAt:
		return models.LikelihoodMedium
	default:
		return models.LikelihoodLow
	}
}
