package engine

import (
	"strings"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// CompareFlow scores how well an observed call sequence follows the expected call graph. Half the
// score is node coverage (observed steps present in the graph), half is ordering (consecutive
// observed steps joined by a graph edge in the same direction).
func CompareFlow(actual []string, graph models.CallGraph) models.FlowComparison {
	expected := graph.Nodes()
	cmp := models.FlowComparison{Actual: actual, Expected: expected}
	if len(actual) == 0 || len(expected) == 0 {
		return cmp
	}

	present := 0
	for _, step := range actual {
		if indexOfSymbol(expected, step) >= 0 {
			present++
		} else {
			cmp.Unexpected = append(cmp.Unexpected, step)
		}
	}
	nodeScore := float64(present) / float64(len(actual))

	edgeScore := nodeScore
	if len(actual) > 1 {
		ordered := 0
		for i := 1; i < len(actual); i++ {
			if hasEdge(graph, actual[i-1], actual[i]) {
				ordered++
			}
		}
		edgeScore = float64(ordered) / float64(len(actual)-1)
	}
	cmp.Similarity = clamp(0.5*nodeScore+0.5*edgeScore, 0, 1)

	// Direct callees of the root that never showed up are the likeliest skipped steps.
	for _, e := range graph.Edges {
		if e.Depth != 1 || indexOfSymbol(actual, e.To) >= 0 || indexOfSymbol(cmp.Missing, e.To) >= 0 {
			continue
		}
		cmp.Missing = append(cmp.Missing, e.To)
	}
	return cmp
}

func hasEdge(graph models.CallGraph, from, to string) bool {
	for _, e := range graph.Edges {
		if sameSymbol(e.From, from) && sameSymbol(e.To, to) {
			return true
		}
	}
	return false
}

func indexOfSymbol(list []string, sym string) int {
	for i, s := range list {
		if sameSymbol(s, sym) {
			return i
		}
	}
	return -1
}

// sameSymbol compares the trailing "Type.Method" of two symbols, ignoring case and receiver
// decoration, so "ledger.(*Ledger).Write" matches "Ledger.Write".
func sameSymbol(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	return strings.EqualFold(symbolTail(a), symbolTail(b))
}

func symbolTail(s string) string {
	s = strings.NewReplacer("(*", "", "(", "", ")", "", "*", "").Replace(s)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return strings.Join(parts, ".")
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
