package patterns

import (
	"sort"
	"strconv"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// Options tunes the clusterer.
type Options struct {
	// SimilarityThreshold is the minimum shared-token ratio for a record to join a cluster.
	SimilarityThreshold float64
	Mask                bool
	MaxCorrelationIDs   int
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{SimilarityThreshold: 0.5, Mask: true, MaxCorrelationIDs: 20}
}

// Clusterer groups log records into templates in a single pass. Output depends only on the order in
// which records are added.
type Clusterer struct {
	opts     Options
	clusters []*cluster
	byLength map[int][]*cluster
	total    int
}

type cluster struct {
	models.PatternCluster
	seq      int
	services map[string]struct{}
	ids      map[string]struct{}
}

// NewClusterer constructs an empty clusterer. A non-positive threshold falls back to the default.
func NewClusterer(opts Options) *Clusterer {
	if opts.SimilarityThreshold <= 0 || opts.SimilarityThreshold > 1 {
		opts.SimilarityThreshold = DefaultOptions().SimilarityThreshold
	}
	if opts.MaxCorrelationIDs <= 0 {
		opts.MaxCorrelationIDs = DefaultOptions().MaxCorrelationIDs
	}
	return &Clusterer{opts: opts, byLength: make(map[int][]*cluster)}
}

// Cluster runs a fresh clusterer over records and returns the clusters in creation order.
func Cluster(records []models.EvidenceRecord, opts Options) []models.PatternCluster {
	c := NewClusterer(opts)
	c.AddAll(records)
	return c.Clusters()
}

// AddAll adds records in order.
func (c *Clusterer) AddAll(records []models.EvidenceRecord) {
	for _, rec := range records {
		c.Add(rec)
	}
}

// Add assigns rec to the most similar cluster with the same token count, or opens a new one, and
// returns the id of the cluster that received it.
func (c *Clusterer) Add(rec models.EvidenceRecord) string {
	tokens := Tokenize(rec.Body, c.opts.Mask)
	c.total++

	var best *cluster
	bestScore := -1.0
	for _, candidate := range c.byLength[len(tokens)] {
		score := similarity(candidate.Template, tokens)
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if best == nil || bestScore < c.opts.SimilarityThreshold {
		best = c.open(tokens, rec)
	} else {
		for i, tok := range tokens {
			if best.Template[i] != tok {
				best.Template[i] = models.Wildcard
			}
		}
	}
	c.absorb(best, rec)
	return best.ID
}

func (c *Clusterer) open(tokens []string, rec models.EvidenceRecord) *cluster {
	seq := len(c.clusters) + 1
	cl := &cluster{
		PatternCluster: models.PatternCluster{
			ID:             "pattern-" + strconv.Itoa(seq),
			Template:       append([]string(nil), tokens...),
			Representative: rec,
			Severities:     make(map[models.LogLevel]int),
			Buckets:        make(map[int64]int),
		},
		seq:      seq,
		services: make(map[string]struct{}),
		ids:      make(map[string]struct{}),
	}
	c.clusters = append(c.clusters, cl)
	c.byLength[len(tokens)] = append(c.byLength[len(tokens)], cl)
	return cl
}

func (c *Clusterer) absorb(cl *cluster, rec models.EvidenceRecord) {
	cl.Count++
	cl.Severities[rec.Severity]++
	if !cl.Representative.Severity.IsError() && rec.Severity.IsError() {
		cl.Representative = rec
	}
	if ts := rec.Timestamp; !ts.IsZero() {
		if cl.FirstSeen.IsZero() || ts.Before(cl.FirstSeen) {
			cl.FirstSeen = ts
		}
		if ts.After(cl.LastSeen) {
			cl.LastSeen = ts
		}
		cl.Buckets[ts.Unix()/60]++
	}
	if rec.Service != "" {
		if _, ok := cl.services[rec.Service]; !ok {
			cl.services[rec.Service] = struct{}{}
			cl.Services = append(cl.Services, rec.Service)
		}
	}
	for _, id := range []string{rec.CorrelationID, rec.TraceID} {
		if id == "" || len(cl.CorrelationIDs) >= c.opts.MaxCorrelationIDs {
			continue
		}
		if _, ok := cl.ids[id]; !ok {
			cl.ids[id] = struct{}{}
			cl.CorrelationIDs = append(cl.CorrelationIDs, id)
		}
	}
}

// similarity is the fraction of positions holding the same concrete token. Wildcard positions do
// not count as shared.
func similarity(template, tokens []string) float64 {
	if len(tokens) == 0 {
		return 1
	}
	shared := 0
	for i, tok := range tokens {
		if template[i] != models.Wildcard && template[i] == tok {
			shared++
		}
	}
	return float64(shared) / float64(len(tokens))
}

// Total is the number of records added.
func (c *Clusterer) Total() int { return c.total }

// Len is the number of clusters.
func (c *Clusterer) Len() int { return len(c.clusters) }

// Clusters returns copies of all clusters in creation order.
func (c *Clusterer) Clusters() []models.PatternCluster {
	out := make([]models.PatternCluster, 0, len(c.clusters))
	for _, cl := range c.clusters {
		out = append(out, cl.snapshot())
	}
	return out
}

// Top returns the n largest clusters by count. Ties go to the earlier first-seen time, then to the
// earlier-created cluster. n <= 0 returns all clusters ranked.
func (c *Clusterer) Top(n int) []models.PatternCluster {
	ranked := append([]*cluster(nil), c.clusters...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if !a.FirstSeen.Equal(b.FirstSeen) {
			return a.FirstSeen.Before(b.FirstSeen)
		}
		return a.seq < b.seq
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]models.PatternCluster, 0, len(ranked))
	for _, cl := range ranked {
		out = append(out, cl.snapshot())
	}
	return out
}

func (cl *cluster) snapshot() models.PatternCluster {
	out := cl.PatternCluster
	out.Template = append([]string(nil), cl.Template...)
	out.Services = append([]string(nil), cl.Services...)
	sort.Strings(out.Services)
	out.CorrelationIDs = append([]string(nil), cl.CorrelationIDs...)
	out.Severities = make(map[models.LogLevel]int, len(cl.Severities))
	for k, v := range cl.Severities {
		out.Severities[k] = v
	}
	out.Buckets = make(map[int64]int, len(cl.Buckets))
	for k, v := range cl.Buckets {
		out.Buckets[k] = v
	}
	return out
}
