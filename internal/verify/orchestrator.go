package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/cruxlabs/crux/internal/agent"
	"github.com/cruxlabs/crux/internal/model"
	"github.com/cruxlabs/crux/internal/news"
)

// RunState tracks where a verification run is in its lifecycle.
type RunState string

const (
	StateCreated         RunState = "created"
	StateEvidenceFetched RunState = "evidence_fetched"
	StateAgentsRunning   RunState = "agents_running"
	StateAggregated      RunState = "aggregated"
	StateDone            RunState = "done"
	StateFailed          RunState = "failed"
)

// EvidenceSearcher is the retriever capability the orchestrator needs.
type EvidenceSearcher interface {
	Search(ctx context.Context, query string, limit int, freshness time.Duration) ([]model.EvidenceItem, error)
}

// PageFetcher enriches a run with the claim's own source page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*model.EvidenceItem, error)
}

// AgentRunner executes one agent role.
type AgentRunner interface {
	Run(ctx context.Context, spec model.RoleConfig, claim model.Claim, evidence []model.EvidenceItem, prior []model.AgentFinding) (model.AgentFinding, error)
}

// Orchestrator sequences evidence retrieval and agent invocations for
// one claim and aggregates the findings into a Verdict. Each run owns
// its verdict-in-progress exclusively; concurrent identical claims are
// collapsed onto one run.
type Orchestrator struct {
	retriever EvidenceSearcher
	pages     PageFetcher // nil disables source-page enrichment
	runner    AgentRunner
	stages    []agent.Stage
	weights   map[model.Role]float64
	cfg       model.VerifyConfig
	cache     *gocache.Cache // nil when caching is disabled
	group     singleflight.Group
	logger    *slog.Logger
}

// NewOrchestrator builds an orchestrator. The stage list must come from
// agent.ResolveStages so the dependency order is already fixed.
func NewOrchestrator(retriever EvidenceSearcher, pages PageFetcher, runner AgentRunner, stages []agent.Stage, cfg model.VerifyConfig, logger *slog.Logger) *Orchestrator {
	weights := make(map[model.Role]float64)
	for _, stage := range stages {
		for _, rc := range stage {
			weights[rc.Role] = rc.Weight
		}
	}

	var cache *gocache.Cache
	if cfg.CacheTTL > 0 {
		cache = gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		retriever: retriever,
		pages:     pages,
		runner:    runner,
		stages:    stages,
		weights:   weights,
		cfg:       cfg,
		cache:     cache,
		logger:    logger,
	}
}

// Verify runs the full pipeline for one claim. Concurrent calls with the
// same claim fingerprint within the coalescing window share one run and
// return the identical verdict.
func (o *Orchestrator) Verify(ctx context.Context, claimText, sourceURL string) (*model.Verdict, error) {
	if strings.TrimSpace(claimText) == "" {
		return nil, fmt.Errorf("%w: empty claim text", ErrInvalidInput)
	}

	claim := model.NewClaim(claimText, sourceURL, time.Now().UTC())
	claim.ID = uuid.NewString()

	if o.cache != nil {
		if cached, ok := o.cache.Get(claim.Fingerprint); ok {
			return cached.(*model.Verdict), nil
		}
	}

	v, err, shared := o.group.Do(claim.Fingerprint, func() (interface{}, error) {
		// The run may be shared with coalesced callers, so it must not
		// die with whichever caller started it. RunTimeout still bounds it.
		return o.run(context.WithoutCancel(ctx), claim)
	})
	if err != nil {
		return nil, err
	}
	verdict := v.(*model.Verdict)
	if shared {
		o.logger.Debug("verification collapsed onto in-flight run", "fingerprint", claim.Fingerprint)
	}
	return verdict, nil
}

// run drives the state machine for a single verification run.
func (o *Orchestrator) run(ctx context.Context, claim model.Claim) (*model.Verdict, error) {
	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	state := StateCreated
	o.logger.Debug("run state", "state", state, "fingerprint", claim.Fingerprint)

	// Created -> EvidenceFetched
	evidence, err := o.fetchEvidence(ctx, claim)
	if err != nil {
		return nil, o.fail(ctx, claim, err)
	}
	state = StateEvidenceFetched
	o.logger.Debug("run state", "state", state, "evidence", len(evidence))

	if len(evidence) == 0 && !o.cfg.AllowDegraded {
		return nil, o.fail(ctx, claim, ErrNoEvidence)
	}

	var verdict *model.Verdict
	if len(evidence) == 0 {
		// Degraded run: nothing for the agents to read, the claim stays
		// unverified without burning model calls.
		verdict = &model.Verdict{
			Fingerprint:   claim.Fingerprint,
			Claim:         claim.Text,
			Label:         model.LabelUnverified,
			Confidence:    0,
			Findings:      []model.AgentFinding{},
			EvidenceCount: 0,
			CreatedAt:     time.Now().UTC(),
		}
	} else {
		// EvidenceFetched -> AgentsRunning
		state = StateAgentsRunning
		o.logger.Debug("run state", "state", state)

		findings, err := o.runStages(ctx, o.stages, claim, evidence)
		if err != nil {
			return nil, o.fail(ctx, claim, err)
		}

		allFallback := true
		for _, f := range findings {
			if !f.Fallback {
				allFallback = false
				break
			}
		}
		if allFallback && !o.cfg.AllowDegraded {
			return nil, o.fail(ctx, claim, ErrAgentMalformed)
		}

		// AgentsRunning -> Aggregated
		label, confidence := Aggregate(findings, o.weights)
		state = StateAggregated
		o.logger.Debug("run state", "state", state, "label", label, "confidence", confidence)

		verdict = &model.Verdict{
			Fingerprint:   claim.Fingerprint,
			Claim:         claim.Text,
			Label:         label,
			Confidence:    confidence,
			Findings:      findings,
			EvidenceCount: len(evidence),
			CreatedAt:     time.Now().UTC(),
		}
	}

	// Aggregated -> Done
	if o.cache != nil {
		o.cache.SetDefault(claim.Fingerprint, verdict)
	}
	o.logger.Info("verification done",
		"fingerprint", claim.Fingerprint,
		"label", verdict.Label,
		"confidence", verdict.Confidence,
		"evidence", verdict.EvidenceCount,
	)
	return verdict, nil
}

// VerifyLite runs a reduced role set over caller-supplied evidence. Used
// by the scan pipeline, which already holds the article as evidence and
// skips retrieval. No caching or collapsing: scan claims are one-shot.
func (o *Orchestrator) VerifyLite(ctx context.Context, claim model.Claim, evidence []model.EvidenceItem, roles []model.Role) (*model.Verdict, error) {
	stages := agent.FilterStages(o.stages, roles)
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: no runnable roles", ErrInvalidInput)
	}

	findings, err := o.runStages(ctx, stages, claim, evidence)
	if err != nil {
		return nil, err
	}

	label, confidence := Aggregate(findings, o.weights)
	return &model.Verdict{
		Fingerprint:   claim.Fingerprint,
		Claim:         claim.Text,
		Label:         label,
		Confidence:    confidence,
		Findings:      findings,
		EvidenceCount: len(evidence),
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// fetchEvidence gathers provider results plus the optional source page.
// Retrieval failure is tolerated when degraded verdicts are allowed.
func (o *Orchestrator) fetchEvidence(ctx context.Context, claim model.Claim) ([]model.EvidenceItem, error) {
	items, err := o.retriever.Search(ctx, claim.Text, o.cfg.EvidenceLimit, 0)
	if err != nil {
		if errors.Is(err, news.ErrInvalidQuery) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if !o.cfg.AllowDegraded {
			return nil, fmt.Errorf("%w: %v", ErrNoEvidence, err)
		}
		o.logger.Warn("evidence retrieval failed, proceeding degraded", "error", err)
		items = nil
	}

	if o.pages != nil && claim.SourceURL != "" {
		page, err := o.pages.Fetch(ctx, claim.SourceURL)
		if err != nil {
			o.logger.Warn("source page fetch failed", "url", claim.SourceURL, "error", err)
		} else {
			items = append(items, *page)
		}
	}

	return items, nil
}

// runStages executes the stage list: roles within a stage fan out
// concurrently and are joined before the next stage starts. A role that
// exhausts its retries contributes a fallback finding; aggregation never
// begins before every role has completed or fallen back.
func (o *Orchestrator) runStages(ctx context.Context, stages []agent.Stage, claim model.Claim, evidence []model.EvidenceItem) ([]model.AgentFinding, error) {
	var findings []model.AgentFinding

	for _, stage := range stages {
		prior := append([]model.AgentFinding(nil), findings...)
		results := make([]model.AgentFinding, len(stage))

		g, gctx := errgroup.WithContext(ctx)
		for i, spec := range stage {
			g.Go(func() error {
				f, err := o.runner.Run(gctx, spec, claim, evidence, prior)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					// Malformed output and provider failures degrade to a
					// fallback finding; they never abort the run by themselves.
					o.logger.Warn("agent degraded to fallback", "role", spec.Role, "error", err)
					results[i] = agent.FallbackFinding(spec.Role)
					return nil
				}
				results[i] = f
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrRunTimeout
			}
			return nil, err
		}

		findings = append(findings, results...)
	}

	return findings, nil
}

// fail logs the terminal Failed state and normalizes timeout errors.
func (o *Orchestrator) fail(ctx context.Context, claim model.Claim, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = ErrRunTimeout
	}
	o.logger.Warn("run state", "state", StateFailed, "fingerprint", claim.Fingerprint, "error", err)
	return err
}
