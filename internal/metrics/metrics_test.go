package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should tolerate duplicates: %v", err)
	}
}

func TestObserveInvestigationLabelsReasonCodes(t *testing.T) {
	before := testutil.ToFloat64(investigationsTotal.WithLabelValues("no_evidence"))
	ObserveInvestigation(time.Second, "NO_EVIDENCE")
	if got := testutil.ToFloat64(investigationsTotal.WithLabelValues("no_evidence")); got != before+1 {
		t.Fatalf("expected counter to increase by one, got %v -> %v", before, got)
	}
}

func TestAddTracerQueriesIgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(tracerQueriesTotal)
	AddTracerQueries(0)
	AddTracerQueries(3)
	if got := testutil.ToFloat64(tracerQueriesTotal); got != before+3 {
		t.Fatalf("expected +3, got %v -> %v", before, got)
	}
}
