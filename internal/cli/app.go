package cli

import (
	"fmt"
	"log/slog"

	"github.com/cruxlabs/crux/internal/agent"
	"github.com/cruxlabs/crux/internal/crisis"
	"github.com/cruxlabs/crux/internal/llm"
	"github.com/cruxlabs/crux/internal/model"
	"github.com/cruxlabs/crux/internal/news"
	"github.com/cruxlabs/crux/internal/scan"
	"github.com/cruxlabs/crux/internal/verify"
)

// app holds the assembled pipeline shared by the serve, verify, and
// scan commands.
type app struct {
	cfg          *model.Config
	orchestrator *verify.Orchestrator
	pipeline     *scan.Pipeline
	tracker      *crisis.Tracker
}

// buildApp constructs the full component graph from configuration.
// The role dependency graph is resolved here, once, so a bad graph
// fails at startup rather than mid-run.
func buildApp(cfg *model.Config, logger *slog.Logger) (*app, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}

	stages, err := agent.ResolveStages(cfg.Agents.Roles)
	if err != nil {
		return nil, fmt.Errorf("resolve agent stages: %w", err)
	}

	client := news.NewClient(cfg.News)
	var pages verify.PageFetcher
	if cfg.Fetch.Enabled {
		pages = news.NewPageFetcher(cfg.Fetch)
	}

	runner := agent.NewRunner(provider, cfg.Agents.MaxRetries)
	orchestrator := verify.NewOrchestrator(client, pages, runner, stages, cfg.Verify, logger)
	tracker := crisis.NewTracker(cfg.Crisis, logger)
	pipeline := scan.NewPipeline(client, orchestrator, tracker, cfg.Scan, cfg.Agents.ScanRoles, logger)

	return &app{
		cfg:          cfg,
		orchestrator: orchestrator,
		pipeline:     pipeline,
		tracker:      tracker,
	}, nil
}
