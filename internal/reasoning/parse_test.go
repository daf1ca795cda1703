package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		verdict models.Verdict
		conf    float64
		wantErr bool
	}{
		{name: "plain", reply: `{"verdict":"expected_behavior","confidence":0.6,"explanation":"retry succeeded"}`, verdict: models.VerdictExpected, conf: 0.6},
		{name: "fenced", reply: "```json\n{\"verdict\":\"real_error\",\"confidence\":0.9}\n```", verdict: models.VerdictRealError, conf: 0.9},
		{name: "clamped", reply: `{"verdict":"real_error","confidence":7}`, verdict: models.VerdictRealError, conf: 1},
		{name: "unknown verdict", reply: `{"verdict":"maybe","confidence":0.8}`, verdict: models.VerdictUnknown, conf: 0},
		{name: "no json", reply: "cannot tell", wantErr: true},
		{name: "broken json", reply: `{"verdict": }`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := parseVerdict(tt.reply)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.verdict, out.Verdict)
			assert.InDelta(t, tt.conf, out.Confidence, 1e-9)
		})
	}
}

func TestParseIdentifiersDropsHallucinations(t *testing.T) {
	ids, err := parseIdentifiers(`[{"type":"request_id","value":"req-77"},{"type":"request_id","value":"req-78"}]`, "failed on req-77")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "req-77", ids[0].Value)
	assert.InDelta(t, 0.5, ids[0].Confidence, 1e-9)
	assert.Equal(t, "reasoning", ids[0].Source)
}
