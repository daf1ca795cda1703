package extractors

import (
	"math"
	"sort"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// DetectBursts flags minute buckets whose volume deviates from the cluster median by at least
// threshold mean absolute deviations. Minutes between the first and last bucket with no records
// count as zero so quiet periods form part of the baseline.
func DetectBursts(buckets map[int64]int, threshold float64) []models.Burst {
	if len(buckets) < 3 {
		return nil
	}
	if threshold <= 0 {
		threshold = 3
	}

	minutes := make([]int64, 0, len(buckets))
	for m := range buckets {
		minutes = append(minutes, m)
	}
	sort.Slice(minutes, func(i, j int) bool { return minutes[i] < minutes[j] })
	first, last := minutes[0], minutes[len(minutes)-1]

	counts := make([]float64, 0, last-first+1)
	for m := first; m <= last; m++ {
		counts = append(counts, float64(buckets[m]))
	}

	median := percentile(counts, 0.5)
	mad := meanAbsoluteDeviation(counts, median)
	if mad == 0 {
		mad = 1
	}

	var bursts []models.Burst
	for _, m := range minutes {
		count := float64(buckets[m])
		if count <= median {
			continue
		}
		score := math.Abs(count-median) / mad
		if score >= threshold {
			bursts = append(bursts, models.Burst{
				Start: time.Unix(m*60, 0).UTC(),
				Count: buckets[m],
				Score: score,
			})
		}
	}
	return bursts
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(math.Round(p * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func meanAbsoluteDeviation(values []float64, center float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Abs(v - center)
	}
	return sum / float64(len(values))
}
