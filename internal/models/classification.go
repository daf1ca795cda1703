package models

import "time"

// Verdict is the outcome of classifying one pattern.
type Verdict string

const (
	VerdictExpected  Verdict = "expected_behavior"
	VerdictRealError Verdict = "real_error"
	VerdictUnknown   Verdict = "unknown"
)

// ParseVerdict normalises model output onto the known verdicts.
func ParseVerdict(raw string) Verdict {
	switch Verdict(raw) {
	case VerdictExpected, VerdictRealError:
		return Verdict(raw)
	}
	switch raw {
	case "expected", "expected behavior", "expected_behaviour", "benign":
		return VerdictExpected
	case "error", "real error", "bug", "failure":
		return VerdictRealError
	}
	return VerdictUnknown
}

// CodeLocation is a code reference matching a pattern.
type CodeLocation struct {
	Repo       string  `json:"repo"`
	File       string  `json:"file"`
	Symbol     string  `json:"symbol,omitempty"`
	Line       int     `json:"line,omitempty"`
	Score      float64 `json:"score"`
	Provenance string  `json:"provenance"`
}

// CallEdge is one caller -> callee relationship at a given hop distance from the root.
type CallEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Depth int    `json:"depth"`
}

// CallGraph is a bounded-depth expansion of calls reachable from Root.
type CallGraph struct {
	Root  string     `json:"root"`
	Depth int        `json:"depth"`
	Edges []CallEdge `json:"edges"`
}

// Nodes returns every symbol in the graph, root first, in edge order.
func (g CallGraph) Nodes() []string {
	seen := map[string]struct{}{g.Root: {}}
	out := []string{g.Root}
	for _, e := range g.Edges {
		for _, n := range []string{e.From, e.To} {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// FlowComparison describes how an observed call sequence relates to the expected graph.
type FlowComparison struct {
	Actual     []string `json:"actual"`
	Expected   []string `json:"expected"`
	Similarity float64  `json:"similarity"`
	Missing    []string `json:"missing,omitempty"`
	Unexpected []string `json:"unexpected,omitempty"`
}

// StateSource records which backend produced an entity state.
type StateSource string

const (
	StateFromLive      StateSource = "live"
	StateFromWarehouse StateSource = "warehouse"
	StateFromLogs      StateSource = "logs"
)

// EntityState is the observed current state of one entity.
type EntityState struct {
	EntityID   string            `json:"entity_id"`
	State      string            `json:"state"`
	Source     StateSource       `json:"source"`
	ObservedAt time.Time         `json:"observed_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// DocSnippet is a ranked documentation excerpt.
type DocSnippet struct {
	Service  string  `json:"service,omitempty"`
	Category string  `json:"category,omitempty"`
	Title    string  `json:"title"`
	Text     string  `json:"text"`
	URL      string  `json:"url,omitempty"`
	Score    float64 `json:"score"`
}

// ReasoningInput is the assembled context handed to the reasoning capability.
type ReasoningInput struct {
	PatternID      string          `json:"pattern_id"`
	Template       string          `json:"template"`
	Occurrences    int             `json:"occurrences"`
	Representative string          `json:"representative"`
	Services       []string        `json:"services,omitempty"`
	ErrorShare     float64         `json:"error_share"`
	Window         Window          `json:"window"`
	EntityStates   []EntityState   `json:"entity_states,omitempty"`
	CodeReference  *CodeLocation   `json:"code_reference,omitempty"`
	Flow           *FlowComparison `json:"flow,omitempty"`
	Docs           []DocSnippet    `json:"docs,omitempty"`
}

// ReasoningOutput is the verdict returned by the reasoning capability.
type ReasoningOutput struct {
	Verdict     Verdict `json:"verdict"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// Classification is the verdict for one cluster. Produced fresh on every run.
type Classification struct {
	PatternID       string          `json:"pattern_id"`
	Verdict         Verdict         `json:"verdict"`
	Confidence      float64         `json:"confidence"`
	ModelConfidence float64         `json:"model_confidence"`
	Explanation     string          `json:"explanation,omitempty"`
	CodeReference   *CodeLocation   `json:"code_reference,omitempty"`
	CodeCandidates  []CodeLocation  `json:"code_candidates,omitempty"`
	Flow            *FlowComparison `json:"flow,omitempty"`
	EntityStates    []EntityState   `json:"entity_states,omitempty"`
	Docs            []DocSnippet    `json:"docs,omitempty"`
	Markers         []Marker        `json:"markers,omitempty"`
}
