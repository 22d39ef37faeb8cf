// Package scan implements the batch ingest pipeline: pull a window of
// fresh articles, verify a candidate claim per article with a reduced
// agent set, and feed misinformation observations to the crisis tracker.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cruxlabs/crux/internal/extract"
	"github.com/cruxlabs/crux/internal/model"
	"github.com/cruxlabs/crux/internal/worker"
)

// ArticleLister is the retriever capability the pipeline needs.
type ArticleLister interface {
	Latest(ctx context.Context, topics []string, window time.Duration, limit int) ([]model.EvidenceItem, error)
}

// Verifier runs the lightweight per-article verification.
type Verifier interface {
	VerifyLite(ctx context.Context, claim model.Claim, evidence []model.EvidenceItem, roles []model.Role) (*model.Verdict, error)
}

// Observer is the crisis tracker surface the pipeline mutates through.
type Observer interface {
	Observe(fingerprint, claim string, at time.Time)
	Evaluate(now time.Time) int
}

// Summary reports one batch run. Per-article failures are counted here,
// never raised as pipeline-fatal.
type Summary struct {
	ArticlesProcessed int `json:"articles_processed"`
	ClustersUpdated   int `json:"clusters_updated"`
	NewAlerts         int `json:"new_alerts"`
	Failures          int `json:"failures"`
}

// Pipeline wires the retriever, the orchestrator's lightweight
// verification, and the crisis tracker into one batch job.
type Pipeline struct {
	articles  ArticleLister
	verifier  Verifier
	tracker   Observer
	cfg       model.ScanConfig
	scanRoles []model.Role
	logger    *slog.Logger
}

// NewPipeline creates a scan pipeline.
func NewPipeline(articles ArticleLister, verifier Verifier, tracker Observer, cfg model.ScanConfig, scanRoles []model.Role, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		articles:  articles,
		verifier:  verifier,
		tracker:   tracker,
		cfg:       cfg,
		scanRoles: scanRoles,
		logger:    logger,
	}
}

// articleJob verifies one article's candidate claim.
type articleJob struct {
	article  model.EvidenceItem
	verifier Verifier
	roles    []model.Role
}

// articleResult is the per-article outcome collected by the batch.
type articleResult struct {
	verdict   *model.Verdict
	claimText string
	seenAt    time.Time
	err       error
}

func (r *articleResult) GetError() error { return r.err }

func (j *articleJob) Execute(ctx context.Context) worker.Result {
	claimText := extract.CandidateClaim(j.article)
	if claimText == "" {
		return &articleResult{err: fmt.Errorf("no candidate claim in %q", j.article.Title)}
	}

	seenAt := j.article.PublishedAt
	if seenAt.IsZero() {
		seenAt = time.Now().UTC()
	}

	claim := model.NewClaim(claimText, j.article.URL, seenAt)
	verdict, err := j.verifier.VerifyLite(ctx, claim, []model.EvidenceItem{j.article}, j.roles)
	if err != nil {
		return &articleResult{claimText: claimText, seenAt: seenAt, err: fmt.Errorf("verify %q: %w", claimText, err)}
	}

	return &articleResult{verdict: verdict, claimText: claimText, seenAt: seenAt}
}

// Run executes one batch over the given window (zero uses the configured
// default). One article's failure never aborts the batch.
func (p *Pipeline) Run(ctx context.Context, window time.Duration) (*Summary, error) {
	if window <= 0 {
		window = p.cfg.Window
	}

	articles, err := p.articles.Latest(ctx, p.cfg.Topics, window, p.cfg.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch articles: %w", err)
	}
	p.logger.Info("scan batch started", "articles", len(articles), "window", window)

	pool := worker.NewPool(ctx, p.cfg.Concurrency)
	pool.Start()
	for _, article := range articles {
		pool.Submit(&articleJob{article: article, verifier: p.verifier, roles: p.scanRoles})
	}
	results := pool.Wait()

	summary := &Summary{ArticlesProcessed: len(articles)}
	for _, r := range results {
		res := r.(*articleResult)
		if res.err != nil {
			summary.Failures++
			p.logger.Warn("article verification failed", "error", res.err)
			continue
		}

		// Anything not cleanly true feeds the crisis tracker.
		if res.verdict.Label != model.LabelTrue {
			p.tracker.Observe(res.verdict.Fingerprint, res.claimText, res.seenAt)
			summary.ClustersUpdated++
		}
	}

	summary.NewAlerts = p.tracker.Evaluate(time.Now().UTC())

	p.logger.Info("scan batch done",
		"processed", summary.ArticlesProcessed,
		"clusters_updated", summary.ClustersUpdated,
		"new_alerts", summary.NewAlerts,
		"failures", summary.Failures,
	)
	return summary, nil
}
