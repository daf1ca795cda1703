package reasoning

import (
	"fmt"
	"strings"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

const classifySystem = `You triage production log patterns for an incident investigation.
Decide whether the pattern is expected_behavior (normal, benign or handled) or real_error (a fault
that plausibly explains the reported problem). Use the entity state, code reference, call-flow
comparison and documentation when present. Reply with a single JSON object and nothing else:
{"verdict": "expected_behavior" | "real_error", "confidence": <0..1>, "explanation": "<one or two sentences>"}`

const extractSystem = `You extract business identifiers from incident descriptions.
Known types: entity_id, tracking_id, request_id, company_id, company_name, correlation_id.
Reply with a JSON array and nothing else: [{"type": "...", "value": "...", "confidence": <0..1>}].
Return [] when no identifier is present. Never invent values that do not appear in the text.`

// classifyPrompt renders the assembled context for one pattern.
func classifyPrompt(in models.ReasoningInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pattern %s (%d occurrences, %.0f%% at error level)\n", in.PatternID, in.Occurrences, in.ErrorShare*100)
	fmt.Fprintf(&b, "Template: %s\n", in.Template)
	fmt.Fprintf(&b, "Example: %s\n", truncate(in.Representative, 2000))
	if len(in.Services) > 0 {
		fmt.Fprintf(&b, "Services: %s\n", strings.Join(in.Services, ", "))
	}
	if !in.Window.Start.IsZero() {
		fmt.Fprintf(&b, "Window: %s .. %s (%s)\n",
			in.Window.Start.Format(time.RFC3339), in.Window.End.Format(time.RFC3339), in.Window.Reason)
	}
	if len(in.EntityStates) > 0 {
		b.WriteString("Entity state:\n")
		for _, s := range in.EntityStates {
			fmt.Fprintf(&b, "- %s: %s (%s", s.EntityID, s.State, s.Source)
			if !s.ObservedAt.IsZero() {
				fmt.Fprintf(&b, ", %s", s.ObservedAt.Format(time.RFC3339))
			}
			b.WriteString(")\n")
		}
	}
	if ref := in.CodeReference; ref != nil {
		fmt.Fprintf(&b, "Code: %s/%s", ref.Repo, ref.File)
		if ref.Line > 0 {
			fmt.Fprintf(&b, ":%d", ref.Line)
		}
		if ref.Symbol != "" {
			fmt.Fprintf(&b, " %s", ref.Symbol)
		}
		b.WriteString("\n")
	}
	if f := in.Flow; f != nil {
		fmt.Fprintf(&b, "Observed calls: %s\n", strings.Join(f.Actual, " -> "))
		fmt.Fprintf(&b, "Flow similarity to expected graph: %.2f\n", f.Similarity)
		if len(f.Missing) > 0 {
			fmt.Fprintf(&b, "Expected but not observed: %s\n", strings.Join(f.Missing, ", "))
		}
		if len(f.Unexpected) > 0 {
			fmt.Fprintf(&b, "Observed but not expected: %s\n", strings.Join(f.Unexpected, ", "))
		}
	}
	for _, d := range in.Docs {
		fmt.Fprintf(&b, "Doc %q: %s\n", d.Title, truncate(d.Text, 600))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
