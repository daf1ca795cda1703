package engine

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"
	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// RuleEngine maps report outcomes to remediation steps from a YAML rule pack.
type RuleEngine struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule represents a single remediation rule.
type Rule struct {
	ID              string    `yaml:"id"`
	Match           RuleMatch `yaml:"match"`
	Recommendations []string  `yaml:"recommendations"`
}

// RuleMatch defines optional attributes for rule matching. Empty attributes match anything.
type RuleMatch struct {
	Reason           string   `yaml:"reason"`
	Verdict          string   `yaml:"verdict"`
	Service          string   `yaml:"service"`
	TemplateContains []string `yaml:"template_contains"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

// NewRuleEngine loads rules from the provided path. If path is empty or missing, returns nil engine.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return ParseRules(data, logger)
}

// ParseRules builds an engine from an in-memory rule pack.
func ParseRules(data []byte, logger *slog.Logger) (*RuleEngine, error) {
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngine{rules: cfg.Rules, logger: logger}, nil
}

// Len returns the number of loaded rules.
func (e *RuleEngine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// Recommend returns the remediation steps of every rule matching the report, in rule order.
func (e *RuleEngine) Recommend(report models.Report) []string {
	if e == nil {
		return nil
	}

	matched := make([]string, 0)
	for _, rule := range e.rules {
		if rule.Match.Reason != "" && !strings.EqualFold(rule.Match.Reason, string(report.Reason)) {
			continue
		}
		candidates := report.Patterns
		if rule.Match.Verdict != "" || rule.Match.Service != "" || len(rule.Match.TemplateContains) > 0 {
			if !anyPatternMatches(rule.Match, candidates) {
				continue
			}
		}
		e.logger.Debug("remediation rule matched", slog.String("rule", rule.ID))
		matched = appendUnique(matched, rule.Recommendations...)
	}
	return matched
}

func anyPatternMatches(m RuleMatch, summaries []models.PatternSummary) bool {
	for _, s := range summaries {
		if m.Verdict != "" && !strings.EqualFold(m.Verdict, string(s.Classification.Verdict)) {
			continue
		}
		if m.Service != "" && !serviceMatches(m.Service, s.Cluster.Services) {
			continue
		}
		if len(m.TemplateContains) > 0 && !templateContains(m.TemplateContains, s.Cluster.TemplateString()) {
			continue
		}
		return true
	}
	return false
}

func serviceMatches(pattern string, services []string) bool {
	for _, s := range services {
		if wildcard.Match(strings.ToLower(pattern), strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func templateContains(keywords []string, template string) bool {
	template = strings.ToLower(template)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(template, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// defaultRemediation covers reports no rule matched.
func defaultRemediation(reason models.ReasonCode) []string {
	switch reason {
	case models.ReasonNoEvidence:
		return []string{
			"Verify the identifiers in the report exist in the warehouse",
			"Widen the time window or supply the reported time explicitly",
			"Check that the affected services ship logs to the configured stores",
		}
	case models.ReasonRetentionExceeded:
		return []string{
			"Request a restore of the archived log range from the platform team",
			"Investigate from warehouse records using the timeline view",
		}
	}
	return []string{
		"Inspect the top real_error pattern and its code reference",
		"Review the entity timeline for failed branches around the window",
	}
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}
