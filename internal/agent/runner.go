package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cruxlabs/crux/internal/llm"
	"github.com/cruxlabs/crux/internal/model"
)

// ErrOutputMalformed is surfaced when a role's model output still fails
// schema validation after all retries. The orchestrator converts it to a
// low-confidence fallback finding rather than failing the run.
var ErrOutputMalformed = errors.New("agent output malformed")

// Runner executes agent roles against a single LLM provider. Schema
// validation, retry, and timeout handling live here once, shared by
// every role.
type Runner struct {
	provider   llm.Provider
	maxRetries int // Extra attempts after a schema-validation failure
}

// NewRunner creates a runner. maxRetries below zero falls back to 2.
func NewRunner(provider llm.Provider, maxRetries int) *Runner {
	if maxRetries < 0 {
		maxRetries = 2
	}
	return &Runner{provider: provider, maxRetries: maxRetries}
}

// rawFinding is the wire shape the model is asked to produce.
type rawFinding struct {
	Stance       string   `json:"stance"`
	Confidence   *float64 `json:"confidence"`
	Rationale    string   `json:"rationale"`
	EvidenceURLs []string `json:"evidence_urls"`
}

// Run invokes one role and validates its structured output. The role's
// timeout bounds each attempt; a late response is discarded with the
// cancelled context, never merged in afterwards.
func (r *Runner) Run(ctx context.Context, spec model.RoleConfig, claim model.Claim, evidence []model.EvidenceItem, prior []model.AgentFinding) (model.AgentFinding, error) {
	system := roleContract(spec.Role)
	prompt := buildPrompt(claim, evidence, prior)

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return model.AgentFinding{}, err
		}

		finding, err := r.invokeOnce(ctx, spec, system, prompt)
		if err == nil {
			return finding, nil
		}
		lastErr = err

		// Only formatting failures are retried; context errors and
		// provider failures bubble up immediately.
		if !errors.Is(err, ErrOutputMalformed) {
			return model.AgentFinding{}, err
		}
		system = roleContract(spec.Role) + strictRetryNote
	}

	return model.AgentFinding{}, fmt.Errorf("role %s: %w", spec.Role, lastErr)
}

func (r *Runner) invokeOnce(ctx context.Context, spec model.RoleConfig, system, prompt string) (model.AgentFinding, error) {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := r.provider.Invoke(ctx, llm.InvokeRequest{
		System:      system,
		Prompt:      prompt,
		Model:       spec.Model,
		Temperature: 0.2,
		JSONOnly:    true,
	})
	if err != nil {
		return model.AgentFinding{}, fmt.Errorf("invoke %s: %w", spec.Role, err)
	}

	return parseFinding(spec.Role, resp.Content)
}

// parseFinding validates model output against the finding schema.
// Formatting errors are retriable; a missing or out-of-range confidence
// is semantic low confidence, not an error.
func parseFinding(role model.Role, content string) (model.AgentFinding, error) {
	content = stripFences(content)

	var raw rawFinding
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return model.AgentFinding{}, fmt.Errorf("%w: %v", ErrOutputMalformed, err)
	}

	stance := model.Stance(strings.ToLower(strings.TrimSpace(raw.Stance)))
	if !model.ValidStance(stance) {
		return model.AgentFinding{}, fmt.Errorf("%w: unknown stance %q", ErrOutputMalformed, raw.Stance)
	}

	finding := model.AgentFinding{
		Role:         role,
		Stance:       stance,
		Rationale:    strings.TrimSpace(raw.Rationale),
		EvidenceURLs: raw.EvidenceURLs,
	}

	switch {
	case raw.Confidence == nil:
		finding.Confidence = 0
		finding.LowConfidence = true
	case *raw.Confidence < 0 || *raw.Confidence > 1:
		finding.Confidence = 0
		finding.LowConfidence = true
	default:
		finding.Confidence = *raw.Confidence
	}

	return finding, nil
}

// FallbackFinding is the low-confidence stand-in used once a role has
// exhausted its retries.
func FallbackFinding(role model.Role) model.AgentFinding {
	return model.AgentFinding{
		Role:          role,
		Stance:        model.StanceInsufficient,
		Confidence:    0,
		Rationale:     "agent output could not be validated; treating as insufficient evidence",
		LowConfidence: true,
		Fallback:      true,
	}
}

// stripFences removes a surrounding markdown code fence if the model
// wrapped its JSON in one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
