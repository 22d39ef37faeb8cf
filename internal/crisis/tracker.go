package crisis

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cruxlabs/crux/internal/model"
)

// Tracker owns all crisis cluster state for the process. It is
// constructed at startup and passed by reference to the scan pipeline
// and the read endpoint; every mutation goes through Observe/Evaluate
// under the tracker's lock.
type Tracker struct {
	mu           sync.Mutex
	clusters     map[string]*model.CrisisCluster // keyed by representative fingerprint
	observations map[string][]time.Time          // per cluster ID, pruned to the alert window
	cfg          model.CrisisConfig
	logger       *slog.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(cfg model.CrisisConfig, logger *slog.Logger) *Tracker {
	if cfg.DensityIncrement <= 0 {
		cfg.DensityIncrement = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		clusters:     make(map[string]*model.CrisisCluster),
		observations: make(map[string][]time.Time),
		cfg:          cfg,
		logger:       logger,
	}
}

// Observe records one misinformation observation. The cluster is found
// by exact fingerprint match, then optionally by token-overlap fuzzy
// matching, else created. An expired match is dead: a fresh wave of the
// same claim starts a new cluster with a fresh baseline. Density only
// ever grows here.
func (t *Tracker) Observe(fingerprint, claim string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cluster := t.clusters[fingerprint]
	if cluster != nil && cluster.State == model.ClusterExpired {
		delete(t.observations, cluster.ID)
		cluster = nil
	}
	if cluster == nil && t.cfg.FuzzySimilarity > 0 {
		cluster = t.fuzzyMatch(claim)
	}

	if cluster == nil {
		cluster = &model.CrisisCluster{
			ID:                  uuid.NewString(),
			Fingerprint:         fingerprint,
			RepresentativeClaim: claim,
			State:               model.ClusterWatching,
			FirstSeen:           at,
			LastSeen:            at,
		}
		t.clusters[fingerprint] = cluster
		t.logger.Debug("new crisis cluster", "id", cluster.ID, "claim", claim)
	}

	cluster.Density += t.cfg.DensityIncrement
	if at.After(cluster.LastSeen) {
		cluster.LastSeen = at
	}
	if !containsString(cluster.ArticleFingerprints, fingerprint) {
		cluster.ArticleFingerprints = append(cluster.ArticleFingerprints, fingerprint)
	}
	t.observations[cluster.ID] = append(t.observations[cluster.ID], at)
}

// Evaluate runs threshold and expiry transitions. A watching cluster
// becomes an alert when the observations inside the trailing alert
// window alone carry threshold density; the cluster's age is irrelevant,
// only the recent burst counts. Clusters idle past the staleness window
// expire. An alert never drops back to watching.
func (t *Tracker) Evaluate(now time.Time) (newAlerts int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range t.clusters {
		if c.State == model.ClusterExpired {
			continue
		}

		if c.LastSeen.Before(now.Add(-t.cfg.StalenessWindow)) {
			c.State = model.ClusterExpired
			delete(t.observations, c.ID)
			t.logger.Info("crisis cluster expired", "id", c.ID)
			continue
		}

		recent := pruneBefore(t.observations[c.ID], now.Add(-t.cfg.AlertWindow))
		t.observations[c.ID] = recent

		if c.State == model.ClusterWatching &&
			float64(len(recent))*t.cfg.DensityIncrement >= t.cfg.AlertThreshold {
			c.State = model.ClusterAlert
			newAlerts++
			t.logger.Info("crisis cluster promoted to alert",
				"id", c.ID, "density", c.Density, "claim", c.RepresentativeClaim)
		}
	}

	return newAlerts
}

// ListActive returns copies of all watching and alert clusters, ordered
// by descending density. Reading never triggers Evaluate.
func (t *Tracker) ListActive() []model.CrisisCluster {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.CrisisCluster, 0, len(t.clusters))
	for _, c := range t.clusters {
		if c.State == model.ClusterWatching || c.State == model.ClusterAlert {
			copied := *c
			copied.ArticleFingerprints = append([]string(nil), c.ArticleFingerprints...)
			out = append(out, copied)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Density != out[j].Density {
			return out[i].Density > out[j].Density
		}
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})
	return out
}

// fuzzyMatch finds an active cluster whose representative claim shares
// enough normalized tokens with the new claim. Caller holds the lock.
func (t *Tracker) fuzzyMatch(claim string) *model.CrisisCluster {
	newTokens := tokenSet(claim)
	if len(newTokens) == 0 {
		return nil
	}

	var best *model.CrisisCluster
	bestSim := t.cfg.FuzzySimilarity
	for _, c := range t.clusters {
		if c.State == model.ClusterExpired {
			continue
		}
		sim := jaccard(newTokens, tokenSet(c.RepresentativeClaim))
		if sim >= bestSim {
			best = c
			bestSim = sim
		}
	}
	return best
}

// pruneBefore drops observation timestamps older than cutoff. The list
// is not assumed sorted; scan batches carry article publish times.
func pruneBefore(obs []time.Time, cutoff time.Time) []time.Time {
	kept := obs[:0]
	for _, at := range obs {
		if !at.Before(cutoff) {
			kept = append(kept, at)
		}
	}
	return kept
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(model.NormalizeClaim(text)) {
		set[tok] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
