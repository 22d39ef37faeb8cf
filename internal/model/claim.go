package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// Claim represents a factual assertion submitted for verification.
// A Claim is immutable once created.
type Claim struct {
	ID          string    `json:"id,omitempty"`          // Assigned UUID
	Text        string    `json:"text"`                  // The claim text itself
	SourceURL   string    `json:"source_url,omitempty"`  // Where the claim was seen, if known
	SubmittedAt time.Time `json:"submitted_at"`          // When the claim entered the system
	Fingerprint string    `json:"fingerprint,omitempty"` // Normalized-text hash, see Fingerprint()
}

// NewClaim builds a Claim with its fingerprint precomputed.
func NewClaim(text, sourceURL string, at time.Time) Claim {
	return Claim{
		Text:        text,
		SourceURL:   sourceURL,
		SubmittedAt: at,
		Fingerprint: Fingerprint(text),
	}
}

// Fingerprint derives a deterministic key from claim text: lowercase,
// punctuation stripped, whitespace collapsed, then SHA-256. Used for
// verdict caching, single-flight collapsing, and crisis clustering.
func Fingerprint(text string) string {
	norm := NormalizeClaim(text)
	hash := sha256.Sum256([]byte(norm))
	return "crux:v1:" + hex.EncodeToString(hash[:])
}

// NormalizeClaim returns the canonical form of claim text used for
// fingerprinting and fuzzy cluster matching.
func NormalizeClaim(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}
