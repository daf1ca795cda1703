package engine

import (
	"sort"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// MergeByKey flattens provenance-tagged candidate lists into one entry per key. When two candidates
// share a key, better decides whether the newcomer replaces the kept one. The result keeps
// first-seen key order; callers sort as they need.
func MergeByKey[T any](key func(T) string, better func(candidate, current T) bool, lists ...[]T) []T {
	index := make(map[string]int)
	var out []T
	for _, list := range lists {
		for _, item := range list {
			k := key(item)
			if i, ok := index[k]; ok {
				if better(item, out[i]) {
					out[i] = item
				}
				continue
			}
			index[k] = len(out)
			out = append(out, item)
		}
	}
	return out
}

// mergeCodeLocations dedups code search results by (repo, file), keeping the highest score, and
// ranks them by score.
func mergeCodeLocations(lists ...[]models.CodeLocation) []models.CodeLocation {
	merged := MergeByKey(
		func(c models.CodeLocation) string { return c.Repo + "\x00" + c.File },
		func(candidate, current models.CodeLocation) bool { return candidate.Score > current.Score },
		lists...,
	)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged
}
