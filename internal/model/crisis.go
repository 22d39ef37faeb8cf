package model

import "time"

// ClusterState is the lifecycle state of a crisis cluster.
type ClusterState string

const (
	ClusterWatching ClusterState = "watching"
	ClusterAlert    ClusterState = "alert"
	ClusterExpired  ClusterState = "expired"
)

// CrisisCluster records one currently-tracked misinformation cluster.
// Only the crisis tracker mutates clusters; everything else sees copies.
type CrisisCluster struct {
	ID                  string       `json:"id"`
	Fingerprint         string       `json:"fingerprint"`          // Representative claim fingerprint
	RepresentativeClaim string       `json:"representative_claim"` // Text of the first observed claim
	ArticleFingerprints []string     `json:"article_fingerprints,omitempty"`
	Density             float64      `json:"density"` // Monotonically non-decreasing observation score
	State               ClusterState `json:"state"`
	FirstSeen           time.Time    `json:"first_seen"`
	LastSeen            time.Time    `json:"last_seen"`
}
