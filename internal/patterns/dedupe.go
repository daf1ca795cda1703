package patterns

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// DedupStrategy derives the identity key used to collapse duplicate evidence records.
type DedupStrategy interface {
	Name() string
	Key(rec models.EvidenceRecord) string
}

// NormalizedBodyHash keys records by source, timestamp and a hash of the whitespace- and
// case-normalized body. Records re-emitted by different shippers with cosmetic differences collapse.
type NormalizedBodyHash struct{}

func (NormalizedBodyHash) Name() string { return "normalized" }

func (NormalizedBodyHash) Key(rec models.EvidenceRecord) string {
	return identityKey(rec, NormalizeBody(rec.Body))
}

// ExactBody keys records by source, timestamp and a hash of the raw body.
type ExactBody struct{}

func (ExactBody) Name() string { return "exact" }

func (ExactBody) Key(rec models.EvidenceRecord) string {
	return identityKey(rec, rec.Body)
}

// StrategyFor maps a config value to a strategy. The empty string selects NormalizedBodyHash.
func StrategyFor(name string) (DedupStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "normalized":
		return NormalizedBodyHash{}, nil
	case "exact":
		return ExactBody{}, nil
	default:
		return nil, fmt.Errorf("unknown dedup strategy %q", name)
	}
}

// NormalizeBody collapses runs of whitespace, trims and lowercases.
func NormalizeBody(body string) string {
	return strings.ToLower(strings.Join(strings.Fields(body), " "))
}

func identityKey(rec models.EvidenceRecord, body string) string {
	sum := sha256.Sum256([]byte(body))
	return rec.Source + "|" + rec.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + hex.EncodeToString(sum[:])
}
