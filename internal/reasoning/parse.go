package reasoning

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

var errNoJSON = errors.New("model reply contained no JSON")

// jsonSpan returns the outermost open..close span of reply, skipping code fences and chatter.
func jsonSpan(reply string, open, close byte) (string, error) {
	start := strings.IndexByte(reply, open)
	end := strings.LastIndexByte(reply, close)
	if start < 0 || end <= start {
		return "", errNoJSON
	}
	return reply[start : end+1], nil
}

type verdictReply struct {
	Verdict     string  `json:"verdict"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

func parseVerdict(reply string) (models.ReasoningOutput, error) {
	raw, err := jsonSpan(reply, '{', '}')
	if err != nil {
		return models.ReasoningOutput{}, err
	}
	var v verdictReply
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return models.ReasoningOutput{}, fmt.Errorf("decode verdict: %w", err)
	}
	out := models.ReasoningOutput{
		Verdict:     models.ParseVerdict(strings.ToLower(strings.TrimSpace(v.Verdict))),
		Confidence:  v.Confidence,
		Explanation: strings.TrimSpace(v.Explanation),
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	if out.Verdict == models.VerdictUnknown {
		out.Confidence = 0
	}
	return out, nil
}

type identifierReply struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

var knownTypes = map[models.IdentifierType]bool{
	models.IdentifierEntity:      true,
	models.IdentifierTracking:    true,
	models.IdentifierRequest:     true,
	models.IdentifierCompany:     true,
	models.IdentifierCompanyName: true,
	models.IdentifierCorrelation: true,
}

// parseIdentifiers keeps known types whose value literally occurs in text.
func parseIdentifiers(reply, text string) ([]models.Identifier, error) {
	raw, err := jsonSpan(reply, '[', ']')
	if err != nil {
		return nil, err
	}
	var items []identifierReply
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode identifiers: %w", err)
	}
	var out []models.Identifier
	for _, it := range items {
		kind := models.IdentifierType(strings.ToLower(strings.TrimSpace(it.Type)))
		value := strings.TrimSpace(it.Value)
		if !knownTypes[kind] || value == "" || !strings.Contains(text, value) {
			continue
		}
		conf := it.Confidence
		if conf <= 0 || conf > 1 {
			conf = 0.5
		}
		out = append(out, models.Identifier{
			Type:       kind,
			Value:      value,
			Confidence: conf,
			Provenance: models.ProvenanceInferred,
			Source:     "reasoning",
		})
	}
	return out, nil
}
