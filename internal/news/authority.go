package news

import (
	"net/url"
	"strings"

	"github.com/cruxlabs/crux/internal/model"
)

// AuthorityClassifier classifies publishers into authority tiers by
// domain suffix. The tier is advisory context for the credibility agent,
// never a hard filter.
type AuthorityClassifier struct {
	primary   map[string]bool
	secondary map[string]bool
}

// NewAuthorityClassifier creates a classifier with the built-in domain
// lists.
func NewAuthorityClassifier() *AuthorityClassifier {
	c := &AuthorityClassifier{
		primary:   make(map[string]bool),
		secondary: make(map[string]bool),
	}

	for _, d := range []string{
		"reuters.com", "apnews.com", "afp.com", "who.int", "un.org",
		"europa.eu", "nih.gov", "cdc.gov", "nature.com", "science.org",
		"doi.org", "gov", "gov.uk", "edu",
	} {
		c.primary[d] = true
	}
	for _, d := range []string{
		"bbc.com", "bbc.co.uk", "nytimes.com", "theguardian.com",
		"washingtonpost.com", "aljazeera.com", "dw.com", "npr.org",
		"france24.com", "wikipedia.org", "britannica.com",
	} {
		c.secondary[d] = true
	}

	return c
}

// Classify maps a URL to an authority tier. Unknown hosts are tertiary.
func (c *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	if rawURL == "" {
		return model.TierUnknown
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.TierTertiary
	}

	host := parsed.Hostname()

	if c.matches(c.primary, host) {
		return model.TierPrimary
	}
	if c.matches(c.secondary, host) {
		return model.TierSecondary
	}
	return model.TierTertiary
}

func (c *AuthorityClassifier) matches(set map[string]bool, host string) bool {
	if set[host] {
		return true
	}
	for domain := range set {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
