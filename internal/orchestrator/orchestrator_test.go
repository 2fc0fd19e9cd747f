package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobsight/jobsight/internal/parser"
	"github.com/jobsight/jobsight/internal/pipeline"
	"github.com/jobsight/jobsight/internal/storage/memory"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string]pipeline.RawPayload
	errs     map[string]error
	calls    map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		payloads: make(map[string]pipeline.RawPayload),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, target pipeline.Target) (pipeline.RawPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[target.URL]++
	if err, ok := f.errs[target.URL]; ok {
		return pipeline.RawPayload{}, err
	}
	payload, ok := f.payloads[target.URL]
	if !ok {
		return pipeline.RawPayload{}, &pipeline.FetchError{Kind: pipeline.FetchConnection, URL: target.URL}
	}
	return payload, nil
}

type fakeParser struct {
	listings   map[string][]pipeline.Target
	candidates map[string]pipeline.VacancyCandidate
	errs       map[string]error
}

func newFakeParser() *fakeParser {
	return &fakeParser{
		listings:   make(map[string][]pipeline.Target),
		candidates: make(map[string]pipeline.VacancyCandidate),
		errs:       make(map[string]error),
	}
}

func (p *fakeParser) ParseListing(payload pipeline.RawPayload) ([]pipeline.Target, error) {
	if err, ok := p.errs[payload.URL]; ok {
		return nil, err
	}
	return p.listings[payload.URL], nil
}

func (p *fakeParser) Parse(payload pipeline.RawPayload) (pipeline.VacancyCandidate, error) {
	if err, ok := p.errs[payload.URL]; ok {
		return pipeline.VacancyCandidate{}, err
	}
	return p.candidates[payload.URL], nil
}

// fakeResolver keys identities off the candidate external id.
type fakeResolver struct {
	mu         sync.Mutex
	seed       map[string]bool
	reconciled map[string]int
	errs       map[string]error
	finalized  int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		reconciled: make(map[string]int),
		errs:       make(map[string]error),
	}
}

func (r *fakeResolver) BeginPass(seed map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seed = seed
}

func (r *fakeResolver) Reconcile(_ context.Context, c pipeline.VacancyCandidate) (pipeline.VacancyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errs[c.ExternalID]; ok {
		return pipeline.VacancyRecord{}, err
	}
	r.reconciled[c.ExternalID]++
	return pipeline.VacancyRecord{Identity: c.ExternalID, Status: pipeline.StatusNew}, nil
}

func (r *fakeResolver) FinalizePass(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized++
	return nil, nil
}

func payloadFor(url string) pipeline.RawPayload {
	return pipeline.RawPayload{Source: "acme", URL: url, StatusCode: 200, Body: []byte("body")}
}

func testConfig() Config {
	return Config{
		Concurrency:     1,
		CheckpointEvery: 1,
		Sources: []SourceSpec{
			{Name: "acme", ListingURLs: []string{"https://acme.test/jobs"}},
		},
	}
}

func TestExecutePartialFailureCompletes(t *testing.T) {
	t.Parallel()
	fetcher := newFakeFetcher()
	p := newFakeParser()
	resolver := newFakeResolver()
	runs := memory.NewRunStore()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	fetcher.payloads["https://acme.test/jobs"] = payloadFor("https://acme.test/jobs")
	p.listings["https://acme.test/jobs"] = []pipeline.Target{
		{Source: "acme", URL: "https://acme.test/jobs/1"},
		{Source: "acme", URL: "https://acme.test/jobs/2"},
	}
	fetcher.errs["https://acme.test/jobs/1"] = &pipeline.FetchError{
		Kind: pipeline.FetchTimeout, URL: "https://acme.test/jobs/1",
	}
	fetcher.payloads["https://acme.test/jobs/2"] = payloadFor("https://acme.test/jobs/2")
	p.candidates["https://acme.test/jobs/2"] = pipeline.VacancyCandidate{
		Source: "acme", ExternalID: "j2", Title: "Engineer",
	}

	o := New(fetcher, p, resolver, runs, nil, clock, testConfig(), zap.NewNop())
	run, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, pipeline.RunCompleted, run.State)
	require.NotNil(t, run.FinishedAt)

	require.Equal(t, pipeline.OutcomeFetchError, run.Outcomes["https://acme.test/jobs/1"].Outcome)
	require.Equal(t, pipeline.OutcomeSuccess, run.Outcomes["https://acme.test/jobs/2"].Outcome)
	require.True(t, run.Reconciled["j2"])
	require.Equal(t, 1, resolver.reconciled["j2"])
	require.Equal(t, 1, resolver.finalized)

	saved, found, err := runs.Get(context.Background(), run.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, pipeline.RunCompleted, saved.State)
}

func TestExecuteAbortsWhenNoSourceReachable(t *testing.T) {
	t.Parallel()
	fetcher := newFakeFetcher()
	resolver := newFakeResolver()
	runs := memory.NewRunStore()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	fetcher.errs["https://acme.test/jobs"] = &pipeline.FetchError{
		Kind: pipeline.FetchConnection, URL: "https://acme.test/jobs",
	}

	o := New(fetcher, newFakeParser(), resolver, runs, nil, clock, testConfig(), zap.NewNop())
	run, err := o.Execute(context.Background())
	require.Error(t, err)

	var abortErr *pipeline.RunAbortError
	require.ErrorAs(t, err, &abortErr)
	require.Equal(t, run.ID, abortErr.RunID)
	require.Equal(t, pipeline.RunAborted, run.State)
	require.Equal(t, 0, resolver.finalized)

	saved, found, err := runs.Get(context.Background(), run.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, pipeline.RunAborted, saved.State)
	require.NotEmpty(t, saved.ErrorText)
}

func TestExecuteAbortsWhenStoreUnavailable(t *testing.T) {
	t.Parallel()
	fetcher := newFakeFetcher()
	p := newFakeParser()
	resolver := newFakeResolver()
	runs := memory.NewRunStore()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	fetcher.payloads["https://acme.test/jobs"] = payloadFor("https://acme.test/jobs")
	p.listings["https://acme.test/jobs"] = []pipeline.Target{
		{Source: "acme", URL: "https://acme.test/jobs/1"},
		{Source: "acme", URL: "https://acme.test/jobs/2"},
	}
	fetcher.payloads["https://acme.test/jobs/1"] = payloadFor("https://acme.test/jobs/1")
	fetcher.payloads["https://acme.test/jobs/2"] = payloadFor("https://acme.test/jobs/2")
	p.candidates["https://acme.test/jobs/1"] = pipeline.VacancyCandidate{Source: "acme", ExternalID: "j1"}
	p.candidates["https://acme.test/jobs/2"] = pipeline.VacancyCandidate{Source: "acme", ExternalID: "j2"}
	resolver.errs["j1"] = errors.New("connection refused")

	o := New(fetcher, p, resolver, runs, nil, clock, testConfig(), zap.NewNop())
	run, err := o.Execute(context.Background())
	require.Error(t, err)

	var abortErr *pipeline.RunAbortError
	require.ErrorAs(t, err, &abortErr)
	require.Equal(t, "vacancy store unavailable", abortErr.Reason)
	require.Equal(t, pipeline.RunAborted, run.State)

	// The failed target is not checkpointed as done, so a resumed run will
	// retry it.
	require.Equal(t, 0, run.Cursor)
}

func TestExecuteResumesFromCheckpoint(t *testing.T) {
	t.Parallel()
	fetcher := newFakeFetcher()
	p := newFakeParser()
	resolver := newFakeResolver()
	runs := memory.NewRunStore()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	aborted := pipeline.CrawlRun{
		ID:        "run-aborted",
		State:     pipeline.RunAborted,
		StartedAt: clock.now.Add(-time.Hour),
		Cursor:    1,
		Targets: []pipeline.Target{
			{Source: "acme", URL: "https://acme.test/jobs/1"},
			{Source: "acme", URL: "https://acme.test/jobs/2"},
		},
		Reconciled: map[string]bool{"j1": true},
	}
	require.NoError(t, runs.Save(context.Background(), aborted))

	fetcher.payloads["https://acme.test/jobs/2"] = payloadFor("https://acme.test/jobs/2")
	p.candidates["https://acme.test/jobs/2"] = pipeline.VacancyCandidate{Source: "acme", ExternalID: "j2"}

	o := New(fetcher, p, resolver, runs, nil, clock, testConfig(), zap.NewNop())
	run, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, "run-aborted", run.ID)
	require.Equal(t, pipeline.RunCompleted, run.State)

	// Discovery is skipped and the target before the cursor is not refetched.
	require.Zero(t, fetcher.calls["https://acme.test/jobs"])
	require.Zero(t, fetcher.calls["https://acme.test/jobs/1"])
	require.Equal(t, 1, fetcher.calls["https://acme.test/jobs/2"])

	// Previously reconciled identities are seeded into the removal pass.
	require.True(t, resolver.seed["j1"])
	require.Equal(t, 1, resolver.reconciled["j2"])
	require.Zero(t, resolver.reconciled["j1"])
	require.True(t, run.Reconciled["j1"])
	require.True(t, run.Reconciled["j2"])

	// A completed run is never offered for resume again.
	_, ok, err := runs.LatestResumable(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExecuteFilteredTargetCountsAsSuccess(t *testing.T) {
	t.Parallel()
	fetcher := newFakeFetcher()
	p := newFakeParser()
	resolver := newFakeResolver()
	runs := memory.NewRunStore()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	fetcher.payloads["https://acme.test/jobs"] = payloadFor("https://acme.test/jobs")
	p.listings["https://acme.test/jobs"] = []pipeline.Target{
		{Source: "acme", URL: "https://acme.test/jobs/1"},
	}
	fetcher.payloads["https://acme.test/jobs/1"] = payloadFor("https://acme.test/jobs/1")
	p.errs["https://acme.test/jobs/1"] = parser.ErrFiltered

	o := New(fetcher, p, resolver, runs, nil, clock, testConfig(), zap.NewNop())
	run, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, pipeline.RunCompleted, run.State)
	require.Equal(t, pipeline.OutcomeSuccess, run.Outcomes["https://acme.test/jobs/1"].Outcome)
	require.Empty(t, resolver.reconciled)
}

func TestExecuteParseErrorIsContained(t *testing.T) {
	t.Parallel()
	fetcher := newFakeFetcher()
	p := newFakeParser()
	resolver := newFakeResolver()
	runs := memory.NewRunStore()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	fetcher.payloads["https://acme.test/jobs"] = payloadFor("https://acme.test/jobs")
	p.listings["https://acme.test/jobs"] = []pipeline.Target{
		{Source: "acme", URL: "https://acme.test/jobs/1"},
	}
	fetcher.payloads["https://acme.test/jobs/1"] = payloadFor("https://acme.test/jobs/1")
	p.errs["https://acme.test/jobs/1"] = &pipeline.ParseError{
		Kind:   pipeline.ParseMissingRequiredField,
		Source: "acme",
		URL:    "https://acme.test/jobs/1",
		Field:  "title",
	}

	o := New(fetcher, p, resolver, runs, nil, clock, testConfig(), zap.NewNop())
	run, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, pipeline.RunCompleted, run.State)
	require.Equal(t, pipeline.OutcomeParseError, run.Outcomes["https://acme.test/jobs/1"].Outcome)
}
