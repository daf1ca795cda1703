package extractors

import (
	"regexp"
	"strings"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// Structured fields that carry an explicit call path, in order of preference.
var callPathFields = []string{"call_path", "span_path", "callstack", "stack"}

var (
	arrowSplit = regexp.MustCompile(`\s*(?:->|=>|→|>)\s*`)
	dottedCall = regexp.MustCompile(`\b([A-Z][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)+)\b`)
)

// CallSequence derives the observed call order from a representative record. An explicit call path
// field wins; otherwise an arrow chain in the body ("A -> B -> C"); otherwise dotted symbols in the
// order they appear. Consecutive repeats are collapsed.
func CallSequence(rec models.EvidenceRecord) []string {
	for _, f := range callPathFields {
		if v := rec.Field(f); v != "" {
			return collapse(splitPath(v))
		}
	}
	if strings.Contains(rec.Body, "->") || strings.Contains(rec.Body, "=>") {
		for _, segment := range strings.Split(rec.Body, ":") {
			if strings.Contains(segment, "->") || strings.Contains(segment, "=>") {
				return collapse(splitPath(segment))
			}
		}
	}
	var seq []string
	for _, m := range dottedCall.FindAllStringSubmatch(rec.Body, -1) {
		seq = append(seq, m[1])
	}
	return collapse(seq)
}

func splitPath(v string) []string {
	var parts []string
	raw := arrowSplit.Split(v, -1)
	if len(raw) == 1 {
		raw = strings.Split(v, ",")
	}
	for _, p := range raw {
		p = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(p), "()"))
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func collapse(seq []string) []string {
	var out []string
	for _, s := range seq {
		if len(out) > 0 && out[len(out)-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}
