package engine

import (
	"sort"

	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/patterns"
)

// EvidenceSet is an insertion-ordered collection of records deduplicated by identity key. It is not
// safe for concurrent use; workers hand results back and the set is filled after the join.
type EvidenceSet struct {
	strategy patterns.DedupStrategy
	keys     map[string]struct{}
	records  []models.EvidenceRecord
}

// NewEvidenceSet builds an empty set using strategy, or NormalizedBodyHash when nil.
func NewEvidenceSet(strategy patterns.DedupStrategy) *EvidenceSet {
	if strategy == nil {
		strategy = patterns.NormalizedBodyHash{}
	}
	return &EvidenceSet{strategy: strategy, keys: make(map[string]struct{})}
}

// Add inserts records not already present and returns how many were new.
func (s *EvidenceSet) Add(records ...models.EvidenceRecord) int {
	added := 0
	for _, rec := range records {
		k := s.strategy.Key(rec)
		if _, ok := s.keys[k]; ok {
			continue
		}
		s.keys[k] = struct{}{}
		s.records = append(s.records, rec)
		added++
	}
	return added
}

// Len is the number of distinct records.
func (s *EvidenceSet) Len() int { return len(s.records) }

// Records returns the records in insertion order.
func (s *EvidenceSet) Records() []models.EvidenceRecord {
	return append([]models.EvidenceRecord(nil), s.records...)
}

// Chronological returns the records sorted by timestamp; ties keep insertion order.
func (s *EvidenceSet) Chronological() []models.EvidenceRecord {
	out := s.Records()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
