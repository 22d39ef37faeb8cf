package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cruxlabs/crux/internal/model"
)

// findingSchema is the JSON shape every role must return. The schema is
// stated in the system message so malformed-output retries can repeat it
// with stricter wording.
const findingSchema = `Return ONLY a JSON object with exactly these keys:
{
  "stance": "supports" | "refutes" | "unrelated" | "insufficient-evidence",
  "confidence": <number between 0 and 1>,
  "rationale": "<2-4 sentence explanation>",
  "evidence_urls": ["<urls from the evidence list you relied on, in order>"]
}`

// roleContract returns the system message for a role.
func roleContract(role model.Role) string {
	var task string
	switch role {
	case model.RoleResearcher:
		task = "You are a research analyst. Read the evidence and determine what it collectively establishes about the claim. Weigh the breadth and consistency of the reporting."
	case model.RoleStance:
		task = "You are a stance classifier. Judge strictly whether the evidence supports or refutes the claim as written. Do not speculate beyond the evidence."
	case model.RoleCredibility:
		task = "You are a source credibility analyst. Judge how reliable the cited publishers are for this claim, using the authority tier annotations. Low-authority consensus warrants low confidence."
	case model.RoleSynthesizer:
		task = "You are a synthesis judge. Reconcile the prior agent findings with the evidence into one final stance. Prefer the conservative reading when findings conflict. Your rationale must explain the final judgment in plain language."
	default:
		task = "You are a fact-checking analyst. Judge the claim against the evidence."
	}
	return task + "\n\n" + findingSchema
}

// buildPrompt renders the user content for one role invocation.
func buildPrompt(claim model.Claim, evidence []model.EvidenceItem, prior []model.AgentFinding) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Claim: %s\n", claim.Text)
	if claim.SourceURL != "" {
		fmt.Fprintf(&b, "Claim source: %s\n", claim.SourceURL)
	}

	b.WriteString("\nEvidence:\n")
	if len(evidence) == 0 {
		b.WriteString("(none retrieved)\n")
	}
	for i, ev := range evidence {
		fmt.Fprintf(&b, "%d. [%s, authority=%s] %s\n", i+1, ev.Publisher, ev.Authority, ev.Title)
		if ev.Excerpt != "" {
			fmt.Fprintf(&b, "   %s\n", truncateBytes(ev.Excerpt, 400))
		}
		if ev.URL != "" {
			fmt.Fprintf(&b, "   %s\n", ev.URL)
		}
	}

	if len(prior) > 0 {
		b.WriteString("\nPrior agent findings:\n")
		for _, f := range prior {
			fmt.Fprintf(&b, "- %s: stance=%s confidence=%.2f: %s\n", f.Role, f.Stance, f.Confidence, f.Rationale)
		}
	}

	return b.String()
}

// truncateBytes caps s at max bytes without splitting a UTF-8 rune.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// strictRetryNote is appended to the system message after a
// schema-validation failure.
const strictRetryNote = "\n\nIMPORTANT: Your previous response was not valid JSON matching the schema. Respond with the JSON object ONLY. No prose, no markdown fences, no extra keys."
