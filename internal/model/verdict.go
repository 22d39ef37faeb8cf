package model

import "time"

// Label is the aggregated verdict label for a claim.
type Label string

const (
	LabelTrue       Label = "true"
	LabelFalse      Label = "false"
	LabelMisleading Label = "misleading"
	LabelUnverified Label = "unverified"
)

// Verdict is the aggregated outcome of one verification run.
//
// Invariant: Confidence is a weighted average of the constituent finding
// confidences, so it never exceeds the maximum individual confidence.
// Label is empty only when EvidenceCount is zero.
type Verdict struct {
	Fingerprint   string         `json:"fingerprint"`
	Claim         string         `json:"claim"`
	Label         Label          `json:"label,omitempty"`
	Confidence    float64        `json:"confidence"`
	Findings      []AgentFinding `json:"findings"`
	EvidenceCount int            `json:"evidence_count"`
	CreatedAt     time.Time      `json:"created_at"`
}
