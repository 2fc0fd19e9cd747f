package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobsight/jobsight/internal/fetcher"
	"github.com/jobsight/jobsight/internal/matcher"
	"github.com/jobsight/jobsight/internal/metrics"
	"github.com/jobsight/jobsight/internal/orchestrator"
	"github.com/jobsight/jobsight/internal/parser"
	"github.com/jobsight/jobsight/internal/pipeline"
	"github.com/jobsight/jobsight/internal/report"
	"github.com/jobsight/jobsight/internal/resolve"
)

// BuildOrchestrator wires fetcher, parser, and resolver into a crawl
// orchestrator from the loaded configuration.
func (a *App) BuildOrchestrator() *orchestrator.Orchestrator {
	cfg := a.Config.Crawler

	f := fetcher.New(fetcher.Config{
		UserAgent:      cfg.UserAgent,
		Timeout:        cfg.Timeout(),
		PerHostDelay:   cfg.PerHostDelay(),
		MaxRetries:     cfg.MaxRetries,
		BackoffInitial: time.Duration(cfg.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
	}, a.Clock, a.Logger)

	p := parser.New(parser.FromConfig(a.Config.Sources))

	resolver := resolve.New(a.Vacancies, a.Hasher, a.Clock, cfg.MissStreakThreshold, a.Logger)

	sources := make([]orchestrator.SourceSpec, 0, len(a.Config.Sources))
	for _, src := range a.Config.Sources {
		sources = append(sources, orchestrator.SourceSpec{
			Name:        src.Name,
			ListingURLs: src.ListingURLs,
		})
	}

	return orchestrator.New(f, p, resolver, a.Runs, a.Archive, a.Clock, orchestrator.Config{
		Concurrency:     cfg.Concurrency,
		SoftDeadline:    cfg.SoftDeadline(),
		CheckpointEvery: cfg.CheckpointEvery,
		Sources:         sources,
	}, a.Logger)
}

// RunCrawl executes one crawl run.
func (a *App) RunCrawl(ctx context.Context) (pipeline.CrawlRun, error) {
	return a.BuildOrchestrator().Execute(ctx)
}

// RunRecommend executes one scoring and delivery cycle over the current
// vacancy set.
func (a *App) RunRecommend(
	ctx context.Context,
	profiles pipeline.ProfileSource,
	deliverer pipeline.Deliverer,
) error {
	users, err := profiles.Profiles(ctx)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	vacancies, err := a.Vacancies.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("load vacancy set: %w", err)
	}

	byIdentity := make(map[string]pipeline.VacancyRecord, len(vacancies))
	for _, v := range vacancies {
		byIdentity[v.Identity] = v
	}

	m := matcher.New(matcher.Config{
		Weights: matcher.Weights{
			Skill:    a.Config.Matching.SkillWeight,
			Location: a.Config.Matching.LocationWeight,
			Salary:   a.Config.Matching.SalaryWeight,
			Recency:  a.Config.Matching.RecencyWeight,
		},
		MinScore:     a.Config.Matching.MinScore,
		TopK:         a.Config.Matching.TopK,
		HalfLifeDays: a.Config.Matching.HalfLifeDays,
	})
	assembler := report.New(a.Delivered, deliverer, a.Clock, a.Logger)

	now := a.Clock.Now()
	for _, user := range users {
		result := m.Score(user, vacancies, now)
		payload, err := assembler.Assemble(ctx, result, byIdentity)
		if err != nil {
			return err
		}
		if err := assembler.Dispatch(ctx, payload); err != nil {
			// Delivery failures affect one user; the cycle continues.
			a.Logger.Warn("delivery failed",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
		}
	}
	metrics.RecordMatchCycle()
	a.Logger.Info("recommendation cycle complete",
		zap.Int("profiles", len(users)),
		zap.Int("vacancies", len(vacancies)),
	)
	return nil
}

// RunCycle executes a full crawl-then-recommend pass. An aborted crawl
// yields no new recommendations for the cycle but leaves reconciled state
// intact.
func (a *App) RunCycle(
	ctx context.Context,
	profiles pipeline.ProfileSource,
	deliverer pipeline.Deliverer,
) error {
	if _, err := a.RunCrawl(ctx); err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	return a.RunRecommend(ctx, profiles, deliverer)
}
