package crisis

import (
	"testing"
	"time"

	"github.com/cruxlabs/crux/internal/model"
)

func testConfig() model.CrisisConfig {
	return model.CrisisConfig{
		DensityIncrement: 1,
		AlertThreshold:   5,
		AlertWindow:      6 * time.Hour,
		StalenessWindow:  48 * time.Hour,
	}
}

func TestObserve_DensityMonotonic(t *testing.T) {
	tr := NewTracker(testConfig(), nil)
	fp := model.Fingerprint("fake story about a disaster")
	now := time.Now().UTC()

	var last float64
	for i := 0; i < 10; i++ {
		tr.Observe(fp, "fake story about a disaster", now.Add(time.Duration(i)*time.Minute))
		clusters := tr.ListActive()
		if len(clusters) != 1 {
			t.Fatalf("clusters = %d, want 1", len(clusters))
		}
		if clusters[0].Density < last {
			t.Fatalf("density decreased: %v -> %v", last, clusters[0].Density)
		}
		last = clusters[0].Density
	}
	if last != 10 {
		t.Errorf("density = %v after 10 observations, want 10", last)
	}
}

func TestEvaluate_PromotesToAlert(t *testing.T) {
	tr := NewTracker(testConfig(), nil)
	fp := model.Fingerprint("viral false claim")
	start := time.Now().UTC()

	// 5 observations within 6 hours crosses the threshold.
	for i := 0; i < 5; i++ {
		tr.Observe(fp, "viral false claim", start.Add(time.Duration(i)*time.Hour))
	}

	newAlerts := tr.Evaluate(start.Add(5 * time.Hour))
	if newAlerts != 1 {
		t.Fatalf("newAlerts = %d, want 1", newAlerts)
	}

	clusters := tr.ListActive()
	if len(clusters) != 1 || clusters[0].State != model.ClusterAlert {
		t.Fatalf("cluster not in alert state: %+v", clusters)
	}

	// A second Evaluate must not re-count or demote.
	if again := tr.Evaluate(start.Add(5 * time.Hour)); again != 0 {
		t.Errorf("second Evaluate reported %d new alerts, want 0", again)
	}
	if tr.ListActive()[0].State != model.ClusterAlert {
		t.Error("alert cluster was demoted")
	}
}

func TestEvaluate_BelowThresholdStaysWatching(t *testing.T) {
	tr := NewTracker(testConfig(), nil)
	fp := model.Fingerprint("slow burn rumor")
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		tr.Observe(fp, "slow burn rumor", now)
	}
	tr.Evaluate(now)

	clusters := tr.ListActive()
	if len(clusters) != 1 || clusters[0].State != model.ClusterWatching {
		t.Fatalf("cluster state = %+v, want watching", clusters)
	}
}

func TestEvaluate_ExpiresStaleClusters(t *testing.T) {
	tr := NewTracker(testConfig(), nil)
	fp := model.Fingerprint("old rumor nobody repeats")
	seen := time.Now().UTC().Add(-72 * time.Hour)

	tr.Observe(fp, "old rumor nobody repeats", seen)
	tr.Evaluate(time.Now().UTC())

	if active := tr.ListActive(); len(active) != 0 {
		t.Errorf("stale cluster still active: %+v", active)
	}
}

func TestEvaluate_AlertThenExpires(t *testing.T) {
	tr := NewTracker(testConfig(), nil)
	fp := model.Fingerprint("burst of misinformation")
	start := time.Now().UTC().Add(-100 * time.Hour)

	for i := 0; i < 5; i++ {
		tr.Observe(fp, "burst of misinformation", start.Add(time.Duration(i)*time.Hour))
	}
	if tr.Evaluate(start.Add(5*time.Hour)) != 1 {
		t.Fatal("cluster did not alert")
	}

	// The staleness window elapses with no further observations.
	tr.Evaluate(time.Now().UTC())
	if active := tr.ListActive(); len(active) != 0 {
		t.Errorf("expired alert still listed: %+v", active)
	}
}

func TestObserve_ReemergenceAfterExpiry(t *testing.T) {
	// A fresh wave of a claim whose old cluster expired starts over with
	// a new cluster; the dead cluster must not swallow the observations.
	tr := NewTracker(testConfig(), nil)
	fp := model.Fingerprint("recurring hoax about contaminated water")
	now := time.Now().UTC()

	tr.Observe(fp, "recurring hoax about contaminated water", now.Add(-72*time.Hour))
	tr.Evaluate(now)
	if active := tr.ListActive(); len(active) != 0 {
		t.Fatalf("cluster did not expire: %+v", active)
	}

	for i := 0; i < 5; i++ {
		tr.Observe(fp, "recurring hoax about contaminated water", now.Add(-time.Duration(i)*time.Minute))
	}
	if newAlerts := tr.Evaluate(now); newAlerts != 1 {
		t.Errorf("newAlerts = %d, want 1", newAlerts)
	}

	active := tr.ListActive()
	if len(active) != 1 || active[0].State != model.ClusterAlert {
		t.Fatalf("re-emerged cluster = %+v, want one alert", active)
	}
	if active[0].Density != 5 {
		t.Errorf("density = %v, want a fresh baseline of 5", active[0].Density)
	}
}

func TestEvaluate_OldClusterAlertsOnRecentBurst(t *testing.T) {
	// The alert gate looks at the trailing window, not the cluster's
	// age: an observation 10 hours ago must not block a dense burst now.
	tr := NewTracker(testConfig(), nil)
	fp := model.Fingerprint("simmering rumor that suddenly goes viral")
	now := time.Now().UTC()

	tr.Observe(fp, "simmering rumor that suddenly goes viral", now.Add(-10*time.Hour))
	for i := 0; i < 5; i++ {
		tr.Observe(fp, "simmering rumor that suddenly goes viral", now.Add(-time.Duration(i)*time.Minute))
	}

	if newAlerts := tr.Evaluate(now); newAlerts != 1 {
		t.Errorf("newAlerts = %d, want 1", newAlerts)
	}
}

func TestEvaluate_SlowTrickleStaysWatching(t *testing.T) {
	// Total density crosses the threshold, but never within one alert
	// window: that is background noise, not a crisis.
	tr := NewTracker(testConfig(), nil)
	fp := model.Fingerprint("claim repeated every few hours")
	now := time.Now().UTC()

	for i := 0; i < 6; i++ {
		at := now.Add(-time.Duration(10-2*i) * time.Hour)
		tr.Observe(fp, "claim repeated every few hours", at)
		tr.Evaluate(at)
	}

	active := tr.ListActive()
	if len(active) != 1 || active[0].State != model.ClusterWatching {
		t.Fatalf("cluster = %+v, want one watching cluster", active)
	}
	if active[0].Density != 6 {
		t.Errorf("density = %v, want 6", active[0].Density)
	}
}

func TestListActive_OrderedByDensity(t *testing.T) {
	tr := NewTracker(testConfig(), nil)
	now := time.Now().UTC()

	tr.Observe(model.Fingerprint("claim one"), "claim one", now)
	for i := 0; i < 3; i++ {
		tr.Observe(model.Fingerprint("claim two"), "claim two", now)
	}
	tr.Observe(model.Fingerprint("claim three"), "claim three", now)
	tr.Observe(model.Fingerprint("claim three"), "claim three", now)

	clusters := tr.ListActive()
	if len(clusters) != 3 {
		t.Fatalf("clusters = %d, want 3", len(clusters))
	}
	for i := 1; i < len(clusters); i++ {
		if clusters[i].Density > clusters[i-1].Density {
			t.Errorf("clusters not ordered by descending density: %v then %v",
				clusters[i-1].Density, clusters[i].Density)
		}
	}
	if clusters[0].RepresentativeClaim != "claim two" {
		t.Errorf("densest cluster = %q, want \"claim two\"", clusters[0].RepresentativeClaim)
	}
}

func TestListActive_ReturnsCopies(t *testing.T) {
	tr := NewTracker(testConfig(), nil)
	now := time.Now().UTC()
	tr.Observe(model.Fingerprint("a claim"), "a claim", now)

	clusters := tr.ListActive()
	clusters[0].Density = 999
	clusters[0].State = model.ClusterExpired

	fresh := tr.ListActive()
	if len(fresh) != 1 || fresh[0].Density != 1 || fresh[0].State != model.ClusterWatching {
		t.Error("mutating a listed cluster affected tracker state")
	}
}

func TestObserve_FuzzyMatching(t *testing.T) {
	cfg := testConfig()
	cfg.FuzzySimilarity = 0.6
	tr := NewTracker(cfg, nil)
	now := time.Now().UTC()

	tr.Observe(model.Fingerprint("major earthquake strikes tokyo japan today"), "major earthquake strikes tokyo japan today", now)
	tr.Observe(model.Fingerprint("major earthquake strikes tokyo japan"), "major earthquake strikes tokyo japan", now)

	if clusters := tr.ListActive(); len(clusters) != 1 {
		t.Errorf("near-duplicate claims formed %d clusters, want 1", len(clusters))
	}
}

func TestObserve_FuzzyDisabledByDefault(t *testing.T) {
	tr := NewTracker(testConfig(), nil)
	now := time.Now().UTC()

	tr.Observe(model.Fingerprint("major earthquake strikes tokyo japan today"), "major earthquake strikes tokyo japan today", now)
	tr.Observe(model.Fingerprint("major earthquake strikes tokyo japan"), "major earthquake strikes tokyo japan", now)

	if clusters := tr.ListActive(); len(clusters) != 2 {
		t.Errorf("exact-only matching formed %d clusters, want 2", len(clusters))
	}
}
