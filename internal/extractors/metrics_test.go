package extractors

import (
	"testing"
	"time"
)

func TestDetectBursts(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC).Unix() / 60
	buckets := map[int64]int{}
	for i := int64(0); i < 15; i++ {
		buckets[base+i] = 2
	}
	buckets[base+11] = 40

	bursts := DetectBursts(buckets, 3)
	if len(bursts) != 1 {
		t.Fatalf("expected one burst, got %+v", bursts)
	}
	if bursts[0].Count != 40 || !bursts[0].Start.Equal(time.Unix((base+11)*60, 0).UTC()) {
		t.Fatalf("unexpected burst %+v", bursts[0])
	}
}

func TestDetectBurstsCountsQuietMinutes(t *testing.T) {
	base := int64(28_000_000)
	// Only three minutes logged across a twenty minute span; the gaps form the baseline.
	buckets := map[int64]int{base: 1, base + 10: 1, base + 20: 12}
	bursts := DetectBursts(buckets, 3)
	if len(bursts) != 1 || bursts[0].Count != 12 {
		t.Fatalf("expected only the busy minute to stand out, got %+v", bursts)
	}
}

func TestDetectBurstsNeedsBaseline(t *testing.T) {
	if bursts := DetectBursts(map[int64]int{1: 100, 2: 1}, 3); bursts != nil {
		t.Fatalf("expected no bursts without a baseline, got %+v", bursts)
	}
}
