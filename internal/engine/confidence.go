package engine

import (
	"fmt"
	"strings"
)

// Signal is one piece of evidence for a verdict, with Value and Weight in [0, 1].
type Signal struct {
	Name   string
	Value  float64
	Weight float64
}

// ConfidenceAggregator combines corroborating signals into one confidence in [0, 1].
type ConfidenceAggregator interface {
	Name() string
	Combine(signals []Signal) float64
}

// NoisyOR treats each weighted signal as an independent chance of the verdict being right:
// 1 - Π(1 - w·v). Adding a signal never lowers the result.
type NoisyOR struct{}

func (NoisyOR) Name() string { return "noisy_or" }

func (NoisyOR) Combine(signals []Signal) float64 {
	miss := 1.0
	for _, s := range signals {
		miss *= 1 - clamp(s.Weight, 0, 1)*clamp(s.Value, 0, 1)
	}
	return clamp(1-miss, 0, 1)
}

// WeightedAverage is Σ w·v / Σ w. It can drop when a weak signal arrives, so callers accumulate it
// through Corroborate.
type WeightedAverage struct{}

func (WeightedAverage) Name() string { return "weighted_average" }

func (WeightedAverage) Combine(signals []Signal) float64 {
	var sum, weights float64
	for _, s := range signals {
		w := clamp(s.Weight, 0, 1)
		sum += w * clamp(s.Value, 0, 1)
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return clamp(sum/weights, 0, 1)
}

// Corroborate folds a newly combined confidence into the running one without ever lowering it.
func Corroborate(current, next float64) float64 {
	if next > current {
		return next
	}
	return current
}

// Accumulate feeds signals one at a time through agg and Corroborate and returns the final
// confidence.
func Accumulate(agg ConfidenceAggregator, signals []Signal) float64 {
	conf := 0.0
	for i := range signals {
		conf = Corroborate(conf, agg.Combine(signals[:i+1]))
	}
	return conf
}

// AggregatorFor maps a config value to an aggregator. The empty string selects NoisyOR.
func AggregatorFor(name string) (ConfidenceAggregator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "noisy_or", "noisyor":
		return NoisyOR{}, nil
	case "weighted_average", "weighted":
		return WeightedAverage{}, nil
	default:
		return nil, fmt.Errorf("unknown confidence aggregation %q", name)
	}
}
