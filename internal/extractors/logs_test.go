package extractors

import (
	"reflect"
	"regexp"
	"testing"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

func TestCorrelationIDs(t *testing.T) {
	records := []models.EvidenceRecord{
		{CorrelationID: "c-1", TraceID: "t-1"},
		{Fields: map[string]string{"x_request_id": "r-9"}},
		{Body: "forwarding cid=c-2 to ledger"},
		{CorrelationID: "c-1", Body: "cid=c-3"},
	}
	body := []*regexp.Regexp{regexp.MustCompile(`cid=([\w-]+)`)}

	got := CorrelationIDs(records, []string{"x_request_id"}, body, 0)
	want := []string{"c-1", "t-1", "r-9", "c-2", "c-3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected ids %v", got)
	}

	capped := CorrelationIDs(records, []string{"x_request_id"}, body, 2)
	if !reflect.DeepEqual(capped, []string{"c-1", "t-1"}) {
		t.Fatalf("expected first two ids, got %v", capped)
	}
}

func TestSymbols(t *testing.T) {
	template := []string{"LedgerService.PostEntry", "failed:", "<NUM>", "<*>", "in", "post_entry()", "see", "internal/ledger/post.go:88", "for", "CreditNote", "e.g.", "the"}
	got := Symbols(template, 0)
	want := []string{"LedgerService.PostEntry", "post_entry", "internal/ledger/post.go:88", "CreditNote"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected symbols %v", got)
	}
	if limited := Symbols(template, 1); len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %v", limited)
	}
}

func TestMentions(t *testing.T) {
	rec := models.EvidenceRecord{Body: "label 610038256 rejected", Fields: map[string]string{"company_id": "C-1"}}
	got := Mentions(rec, []string{"610038256", "C-1", "missing", ""})
	if !reflect.DeepEqual(got, []string{"610038256", "C-1"}) {
		t.Fatalf("unexpected mentions %v", got)
	}
}
