package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/models"
)

// PatternExtractor recognises identifiers in free text with the configured regular expressions.
type PatternExtractor struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	kind       models.IdentifierType
	re         *regexp.Regexp
	confidence float64
}

// NewPatternExtractor compiles patterns. An invalid expression is a configuration error.
func NewPatternExtractor(patterns []config.IdentifierPattern) (*PatternExtractor, error) {
	out := &PatternExtractor{}
	for _, p := range patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("identifier pattern %s: %w", p.Type, err)
		}
		conf := p.Confidence
		if conf <= 0 {
			conf = 0.5
		}
		out.patterns = append(out.patterns, compiledPattern{kind: p.Type, re: re, confidence: conf})
	}
	return out, nil
}

// Extract returns every match, first pattern first. Values are trimmed of trailing punctuation.
func (e *PatternExtractor) Extract(_ context.Context, text string) ([]models.Identifier, error) {
	var out []models.Identifier
	for _, p := range e.patterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			value := m[0]
			if len(m) > 1 {
				value = m[1]
			}
			value = strings.TrimRight(strings.TrimSpace(value), ".,;:")
			if value == "" {
				continue
			}
			out = append(out, models.Identifier{
				Type:       p.kind,
				Value:      value,
				Confidence: p.confidence,
				Provenance: models.ProvenanceInferred,
				Source:     "pattern",
			})
		}
	}
	return out, nil
}

// ChainExtractor runs extractors in order and concatenates their output. A failing extractor does
// not hide the results of the others; the first error is returned alongside them.
type ChainExtractor []Extractor

func (c ChainExtractor) Extract(ctx context.Context, text string) ([]models.Identifier, error) {
	var (
		out      []models.Identifier
		firstErr error
	)
	for _, ex := range c {
		if ex == nil {
			continue
		}
		ids, err := ex.Extract(ctx, text)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		out = append(out, ids...)
	}
	return out, firstErr
}
