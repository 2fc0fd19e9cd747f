// Package orchestrator drives the crawl run state machine: discovery, the
// bounded-concurrency fetch pool, streaming reconciliation, and the final
// removal pass.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobsight/jobsight/internal/metrics"
	"github.com/jobsight/jobsight/internal/parser"
	"github.com/jobsight/jobsight/internal/pipeline"
)

// SourceSpec names a source and its discovery entry points.
type SourceSpec struct {
	Name        string
	ListingURLs []string
}

// Config controls run behavior.
type Config struct {
	Concurrency     int
	SoftDeadline    time.Duration
	CheckpointEvery int
	Sources         []SourceSpec
}

// detailParser is the slice of the parser the orchestrator needs.
type detailParser interface {
	Parse(payload pipeline.RawPayload) (pipeline.VacancyCandidate, error)
	ParseListing(payload pipeline.RawPayload) ([]pipeline.Target, error)
}

// reconciler is the slice of the identity resolver the orchestrator needs.
type reconciler interface {
	BeginPass(seed map[string]bool)
	Reconcile(ctx context.Context, c pipeline.VacancyCandidate) (pipeline.VacancyRecord, error)
	FinalizePass(ctx context.Context) ([]string, error)
}

// Orchestrator owns the CrawlRun for its duration and seals it on exit.
type Orchestrator struct {
	fetcher  pipeline.Fetcher
	parser   detailParser
	resolver reconciler
	runs     pipeline.RunStore
	archive  pipeline.Archive
	clock    pipeline.Clock
	logger   *zap.Logger
	cfg      Config
}

// New constructs an Orchestrator.
func New(
	fetcher pipeline.Fetcher,
	p detailParser,
	resolver reconciler,
	runs pipeline.RunStore,
	archive pipeline.Archive,
	clock pipeline.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 10
	}
	return &Orchestrator{
		fetcher:  fetcher,
		parser:   p,
		resolver: resolver,
		runs:     runs,
		archive:  archive,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
	}
}

// Execute performs one crawl run, resuming from the latest aborted run's
// checkpoint when one exists. Per-target failures are recorded in run
// outcomes and never abort the run; only conditions preventing any further
// progress do.
func (o *Orchestrator) Execute(ctx context.Context) (pipeline.CrawlRun, error) {
	run, resumed, err := o.loadOrCreate(ctx)
	if err != nil {
		return pipeline.CrawlRun{}, err
	}
	o.resolver.BeginPass(run.Reconciled)

	if err := o.transition(ctx, &run, pipeline.RunDiscovering); err != nil {
		return run, err
	}
	if err := o.discover(ctx, &run, resumed); err != nil {
		return o.abort(ctx, run, err)
	}

	if err := o.transition(ctx, &run, pipeline.RunFetchingDetails); err != nil {
		return run, err
	}
	if err := o.fetchDetails(ctx, &run); err != nil {
		return o.abort(ctx, run, err)
	}

	// Reconciliation streams inside the pool; reaching this state means the
	// stream has drained. The removal pass below must not start earlier.
	if err := o.transition(ctx, &run, pipeline.RunReconciling); err != nil {
		return run, err
	}
	if err := o.transition(ctx, &run, pipeline.RunFinalizing); err != nil {
		return run, err
	}
	removed, err := o.resolver.FinalizePass(ctx)
	if err != nil {
		return o.abort(ctx, run, fmt.Errorf("removal pass: %w", err))
	}

	run.State = pipeline.RunCompleted
	now := o.clock.Now()
	run.FinishedAt = &now
	if err := o.runs.Save(ctx, run); err != nil {
		return run, fmt.Errorf("seal run: %w", err)
	}
	metrics.RecordRun(string(pipeline.RunCompleted))
	o.logger.Info("crawl run completed",
		zap.String("run_id", run.ID),
		zap.Int("targets", len(run.Targets)),
		zap.Int("reconciled", len(run.Reconciled)),
		zap.Int("removed", len(removed)),
		zap.Bool("resumed", resumed),
	)
	return run, nil
}

func (o *Orchestrator) loadOrCreate(ctx context.Context) (pipeline.CrawlRun, bool, error) {
	prev, ok, err := o.runs.LatestResumable(ctx)
	if err != nil {
		return pipeline.CrawlRun{}, false, fmt.Errorf("load checkpoint: %w", err)
	}
	if ok {
		o.logger.Info("resuming aborted run",
			zap.String("run_id", prev.ID),
			zap.Int("cursor", prev.Cursor),
		)
		prev.State = pipeline.RunPending
		prev.ErrorText = ""
		prev.FinishedAt = nil
		return prev, true, nil
	}
	run := pipeline.CrawlRun{
		ID:        uuid.NewString(),
		State:     pipeline.RunPending,
		StartedAt: o.clock.Now(),
	}
	if err := o.runs.Save(ctx, run); err != nil {
		return pipeline.CrawlRun{}, false, fmt.Errorf("create run: %w", err)
	}
	return run, false, nil
}

func (o *Orchestrator) transition(ctx context.Context, run *pipeline.CrawlRun, state pipeline.RunState) error {
	run.State = state
	if err := o.runs.Save(ctx, *run); err != nil {
		return fmt.Errorf("save run in state %s: %w", state, err)
	}
	return nil
}

// discover enumerates candidate detail targets from every source's listing
// pages. A resumed run reuses its checkpointed target list so the cursor
// stays meaningful.
func (o *Orchestrator) discover(ctx context.Context, run *pipeline.CrawlRun, resumed bool) error {
	if resumed && len(run.Targets) > 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var targets []pipeline.Target
	reachable := 0

	for _, src := range o.cfg.Sources {
		srcOK := false
		for _, listingURL := range src.ListingURLs {
			payload, err := o.fetcher.Fetch(ctx, pipeline.Target{Source: src.Name, URL: listingURL})
			if err != nil {
				run.RecordOutcome(pipeline.TargetResult{
					URL:       listingURL,
					Source:    src.Name,
					Outcome:   pipeline.OutcomeFetchError,
					ErrorText: err.Error(),
				})
				o.logger.Warn("listing fetch failed",
					zap.String("source", src.Name),
					zap.String("url", listingURL),
					zap.Error(err),
				)
				continue
			}
			found, err := o.parser.ParseListing(payload)
			if err != nil {
				run.RecordOutcome(pipeline.TargetResult{
					URL:       listingURL,
					Source:    src.Name,
					Outcome:   pipeline.OutcomeParseError,
					ErrorText: err.Error(),
				})
				continue
			}
			srcOK = true
			for _, t := range found {
				if _, dup := seen[t.URL]; dup {
					continue
				}
				seen[t.URL] = struct{}{}
				targets = append(targets, t)
			}
		}
		if srcOK {
			reachable++
		}
	}

	if len(o.cfg.Sources) > 0 && reachable == 0 {
		return &pipeline.RunAbortError{
			RunID:  run.ID,
			Reason: "no discovery entry point reachable",
		}
	}

	sort.Slice(targets, func(i, j int) bool {
		if targets[i].Source != targets[j].Source {
			return targets[i].Source < targets[j].Source
		}
		return targets[i].URL < targets[j].URL
	})
	run.Targets = targets
	run.Cursor = 0
	return nil
}

// fetchDetails runs the bounded worker pool over the remaining targets,
// streaming each parsed candidate through the resolver. The checkpoint
// cursor advances over the contiguous prefix of completed targets.
func (o *Orchestrator) fetchDetails(ctx context.Context, run *pipeline.CrawlRun) error {
	deadline := context.Background()
	if o.cfg.SoftDeadline > 0 {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), o.cfg.SoftDeadline)
		defer cancel()
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		fatalErr  error
		completed = make([]bool, len(run.Targets))
		pending   = 0
	)
	sem := make(chan struct{}, o.cfg.Concurrency)
	start := run.Cursor

	for i := start; i < len(run.Targets); i++ {
		if ctx.Err() != nil {
			break
		}
		if deadline.Err() != nil {
			o.logger.Warn("soft deadline reached, proceeding to finalize",
				zap.String("run_id", run.ID),
			)
			break
		}
		mu.Lock()
		stop := fatalErr != nil
		mu.Unlock()
		if stop {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, target pipeline.Target) {
			defer wg.Done()
			defer func() { <-sem }()

			err := o.processTarget(ctx, run, &mu, target)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if fatalErr == nil {
					fatalErr = err
				}
				return
			}
			completed[idx] = true
			for run.Cursor < len(completed) && completed[run.Cursor] {
				run.Cursor++
			}
			pending++
			if pending >= o.cfg.CheckpointEvery {
				pending = 0
				if err := o.runs.Save(ctx, *run); err != nil {
					o.logger.Error("checkpoint save failed",
						zap.String("run_id", run.ID),
						zap.Error(err),
					)
				}
			}
		}(i, run.Targets[i])
	}
	wg.Wait()

	if fatalErr != nil {
		return fatalErr
	}
	if ctx.Err() != nil {
		return &pipeline.RunAbortError{
			RunID:  run.ID,
			Reason: "run canceled",
			Err:    ctx.Err(),
		}
	}
	return nil
}

// processTarget executes fetch, parse, and reconcile for one target. The
// returned error is nil for contained per-target failures; a non-nil error
// is fatal for the run (storage unavailable).
func (o *Orchestrator) processTarget(
	ctx context.Context,
	run *pipeline.CrawlRun,
	mu *sync.Mutex,
	target pipeline.Target,
) error {
	payload, err := o.fetcher.Fetch(ctx, target)
	if err != nil {
		mu.Lock()
		run.RecordOutcome(pipeline.TargetResult{
			URL:       target.URL,
			Source:    target.Source,
			Outcome:   pipeline.OutcomeFetchError,
			ErrorText: err.Error(),
		})
		mu.Unlock()
		metrics.RecordTarget(target.Source, string(pipeline.OutcomeFetchError))
		o.logger.Warn("target fetch failed",
			zap.String("url", target.URL),
			zap.Error(err),
		)
		return nil
	}

	o.archiveRaw(ctx, run.ID, payload)

	candidate, err := o.parser.Parse(payload)
	if err != nil {
		if errors.Is(err, parser.ErrFiltered) {
			mu.Lock()
			run.RecordOutcome(pipeline.TargetResult{
				URL:     target.URL,
				Source:  target.Source,
				Outcome: pipeline.OutcomeSuccess,
			})
			mu.Unlock()
			metrics.RecordTarget(target.Source, string(pipeline.OutcomeSuccess))
			return nil
		}
		mu.Lock()
		run.RecordOutcome(pipeline.TargetResult{
			URL:       target.URL,
			Source:    target.Source,
			Outcome:   pipeline.OutcomeParseError,
			ErrorText: err.Error(),
		})
		mu.Unlock()
		metrics.RecordTarget(target.Source, string(pipeline.OutcomeParseError))
		o.logger.Warn("target parse failed",
			zap.String("url", target.URL),
			zap.Error(err),
		)
		return nil
	}

	record, err := o.resolver.Reconcile(ctx, candidate)
	if err != nil {
		// Reconcile failures mean the store itself is unavailable.
		return &pipeline.RunAbortError{
			RunID:  run.ID,
			Reason: "vacancy store unavailable",
			Err:    err,
		}
	}

	mu.Lock()
	run.MarkReconciled(record.Identity)
	run.RecordOutcome(pipeline.TargetResult{
		URL:     target.URL,
		Source:  target.Source,
		Outcome: pipeline.OutcomeSuccess,
	})
	mu.Unlock()
	metrics.RecordTarget(target.Source, string(pipeline.OutcomeSuccess))
	metrics.RecordReconcile(string(record.Status))
	return nil
}

func (o *Orchestrator) archiveRaw(ctx context.Context, runID string, payload pipeline.RawPayload) {
	if o.archive == nil {
		return
	}
	path := fmt.Sprintf("%s/%s/%d.raw", runID, payload.Source, payload.FetchedAt.UnixNano())
	if _, err := o.archive.Put(ctx, path, payload.Body); err != nil {
		o.logger.Warn("archive raw payload failed",
			zap.String("url", payload.URL),
			zap.Error(err),
		)
	}
}

// abort seals the run as Aborted, preserving the checkpoint for resume.
func (o *Orchestrator) abort(ctx context.Context, run pipeline.CrawlRun, cause error) (pipeline.CrawlRun, error) {
	run.State = pipeline.RunAborted
	run.ErrorText = cause.Error()
	now := o.clock.Now()
	run.FinishedAt = &now
	if err := o.runs.Save(ctx, run); err != nil {
		o.logger.Error("save aborted run failed",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
	metrics.RecordRun(string(pipeline.RunAborted))
	o.logger.Error("crawl run aborted",
		zap.String("run_id", run.ID),
		zap.Int("cursor", run.Cursor),
		zap.Error(cause),
	)
	var abortErr *pipeline.RunAbortError
	if errors.As(cause, &abortErr) {
		return run, cause
	}
	return run, &pipeline.RunAbortError{RunID: run.ID, Reason: cause.Error(), Err: cause}
}
