package extractors

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// CorrelationIDs collects correlation and trace ids from records in first-seen order. Structured
// fields are consulted first; bodyPatterns (first capture group, or the whole match) are a fallback
// for services that only log ids inline. At most max ids are returned when max > 0.
func CorrelationIDs(records []models.EvidenceRecord, fields []string, bodyPatterns []*regexp.Regexp, max int) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) bool {
		id = strings.TrimSpace(id)
		if id == "" {
			return true
		}
		if _, ok := seen[id]; ok {
			return true
		}
		if max > 0 && len(out) >= max {
			return false
		}
		seen[id] = struct{}{}
		out = append(out, id)
		return true
	}

	for _, rec := range records {
		candidates := []string{rec.CorrelationID, rec.TraceID}
		for _, f := range fields {
			candidates = append(candidates, rec.Field(f))
		}
		for _, re := range bodyPatterns {
			for _, m := range re.FindAllStringSubmatch(rec.Body, -1) {
				if len(m) > 1 {
					candidates = append(candidates, m[1])
				} else {
					candidates = append(candidates, m[0])
				}
			}
		}
		for _, c := range candidates {
			if !add(c) {
				return out
			}
		}
	}
	return out
}

// Symbols picks template tokens that look like code identifiers: dotted paths (Ledger.Post),
// CamelCase words, snake_case names and source file references. Masked and wildcard tokens are
// skipped.
func Symbols(template []string, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range template {
		sym := strings.Trim(tok, `"'()[]{},;:=`)
		if sym == "" || strings.HasPrefix(sym, "<") || !looksLikeSymbol(sym) {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

var fileRef = regexp.MustCompile(`^[\w/.-]+\.(go|java|py|ts|js|rb|cs)(:\d+)?$`)

func looksLikeSymbol(s string) bool {
	if fileRef.MatchString(s) {
		return true
	}
	for _, r := range s {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.') {
			return false
		}
	}
	if !unicode.IsLetter(rune(s[0])) {
		return false
	}
	if strings.Contains(s, ".") {
		parts := strings.Split(s, ".")
		for _, p := range parts {
			if p == "" {
				return false
			}
		}
		// Dotted words like "e.g" are not symbols; require an uppercase segment or a call shape.
		return strings.IndexFunc(s, unicode.IsUpper) >= 0
	}
	if strings.Contains(s, "_") && len(s) > 3 {
		return true
	}
	return camelHumps(s) >= 2
}

func camelHumps(s string) int {
	humps := 0
	prevLower := false
	for _, r := range s {
		if unicode.IsUpper(r) && prevLower {
			humps++
		}
		prevLower = unicode.IsLower(r)
	}
	if len(s) > 0 && unicode.IsUpper(rune(s[0])) {
		humps++
	}
	return humps
}

// Mentions returns the values that occur in the record body or any of its fields.
func Mentions(rec models.EvidenceRecord, values []string) []string {
	var out []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if strings.Contains(rec.Body, v) {
			out = append(out, v)
			continue
		}
		for _, fv := range rec.Fields {
			if fv == v {
				out = append(out, v)
				break
			}
		}
	}
	return out
}
