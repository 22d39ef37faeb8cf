package model

// Role identifies a reasoning agent in the pool.
type Role string

const (
	RoleResearcher  Role = "researcher"  // Summarizes what the evidence establishes
	RoleStance      Role = "stance"      // Classifies evidence stance toward the claim
	RoleCredibility Role = "credibility" // Scores source reliability
	RoleSynthesizer Role = "synthesizer" // Reconciles prior findings into a final judgment
)

// Stance is an agent's judgment of how the evidence relates to the claim.
type Stance string

const (
	StanceSupports     Stance = "supports"
	StanceRefutes      Stance = "refutes"
	StanceUnrelated    Stance = "unrelated"
	StanceInsufficient Stance = "insufficient-evidence"
)

// ValidStance reports whether s is one of the four recognized stance labels.
func ValidStance(s Stance) bool {
	switch s {
	case StanceSupports, StanceRefutes, StanceUnrelated, StanceInsufficient:
		return true
	}
	return false
}

// AgentFinding is the structured partial result one agent role produces
// for one verification run.
type AgentFinding struct {
	Role          Role     `json:"role"`
	Stance        Stance   `json:"stance"`
	Confidence    float64  `json:"confidence"`               // Clamped to [0,1]
	Rationale     string   `json:"rationale,omitempty"`      // Free-text reasoning
	EvidenceURLs  []string `json:"evidence_urls,omitempty"`  // Evidence items the agent relied on, in order
	LowConfidence bool     `json:"low_confidence,omitempty"` // Set when confidence was missing or out of range
	Fallback      bool     `json:"fallback,omitempty"`       // Set when the role exhausted retries and fell back
}
