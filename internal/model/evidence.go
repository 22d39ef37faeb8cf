package model

import "time"

// EvidenceItem represents one piece of supporting or refuting material
// fetched from the news provider or a user-supplied source page.
// Read-only to all agents.
type EvidenceItem struct {
	Title       string        `json:"title"`
	Excerpt     string        `json:"excerpt,omitempty"`      // Description or extracted body text
	URL         string        `json:"url"`                    // Full URL
	Publisher   string        `json:"publisher,omitempty"`    // Source/outlet identifier
	PublishedAt time.Time     `json:"published_at,omitempty"` // Zero when the provider omits it
	Relevance   float64       `json:"relevance"`              // Provider relevance, 0-1
	Authority   AuthorityTier `json:"authority,omitempty"`    // Publisher authority classification
}

// AuthorityTier classifies how authoritative a publisher is. The
// credibility agent receives the tier as context alongside the raw
// evidence text.
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Wire services, official bodies, academic publishers
	TierSecondary AuthorityTier = 2 // Major outlets, encyclopedias
	TierTertiary  AuthorityTier = 3 // Blogs, aggregators, unknown hosts
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}
