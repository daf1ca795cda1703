package extractors

import (
	"reflect"
	"testing"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

func TestCallSequence(t *testing.T) {
	cases := []struct {
		name string
		rec  models.EvidenceRecord
		want []string
	}{
		{
			name: "field",
			rec:  models.EvidenceRecord{Fields: map[string]string{"call_path": "Handler.Post > Ledger.Write > Ledger.Write > DB.Exec"}},
			want: []string{"Handler.Post", "Ledger.Write", "DB.Exec"},
		},
		{
			name: "arrow chain in body",
			rec:  models.EvidenceRecord{Body: "posting failed: Handler.Post -> Ledger.Write() -> DB.Exec"},
			want: []string{"Handler.Post", "Ledger.Write", "DB.Exec"},
		},
		{
			name: "dotted symbols",
			rec:  models.EvidenceRecord{Body: "Ledger.Write returned error from DB.Exec (pool exhausted)"},
			want: []string{"Ledger.Write", "DB.Exec"},
		},
		{
			name: "nothing",
			rec:  models.EvidenceRecord{Body: "heartbeat ok"},
			want: nil,
		},
	}
	for _, tc := range cases {
		if got := CallSequence(tc.rec); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}
