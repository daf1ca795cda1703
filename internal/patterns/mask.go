package patterns

import (
	"regexp"
	"strings"
)

// Placeholder tokens substituted for variable fragments before tokenizing.
const (
	MaskTimestamp = "<TS>"
	MaskUUID      = "<UUID>"
	MaskIP        = "<IP>"
	MaskHex       = "<HEX>"
	MaskNumber    = "<NUM>"
)

type maskRule struct {
	re    *regexp.Regexp
	token string
	// keep reports matches that should be left untouched.
	keep func(string) bool
}

// Order matters: timestamps and uuids contain digits that the number rule would otherwise split.
var maskRules = []maskRule{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?`), MaskTimestamp, nil},
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`), MaskUUID, nil},
	{regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?::\d+)?\b`), MaskIP, nil},
	{regexp.MustCompile(`(?i)\b(?:0x[0-9a-f]+|[0-9a-f]{8,})\b`), MaskHex, plainWord},
	{regexp.MustCompile(`\b\d+(?:\.\d+)?\b`), MaskNumber, nil},
}

// plainWord rejects hex candidates without both a digit and a letter, so "deadbeef" and
// "12345678" are left to the other rules.
func plainWord(s string) bool {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return false
	}
	return !strings.ContainsAny(s, "0123456789") || !strings.ContainsAny(strings.ToLower(s), "abcdef")
}

// Mask replaces timestamps, uuids, IPs, hex strings and numbers with placeholder tokens.
func Mask(body string) string {
	for _, rule := range maskRules {
		if rule.keep == nil {
			body = rule.re.ReplaceAllString(body, rule.token)
			continue
		}
		body = rule.re.ReplaceAllStringFunc(body, func(m string) string {
			if rule.keep(m) {
				return m
			}
			return rule.token
		})
	}
	return body
}

// Tokenize splits a log body into whitespace-separated tokens, masking variable fragments first
// when mask is set.
func Tokenize(body string, mask bool) []string {
	if mask {
		body = Mask(body)
	}
	return strings.Fields(body)
}
