package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobsight/jobsight/internal/pipeline"
	"github.com/jobsight/jobsight/internal/storage/memory"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type captureDeliverer struct {
	payloads []pipeline.RecommendationPayload
	err      error
}

func (d *captureDeliverer) Deliver(_ context.Context, payload pipeline.RecommendationPayload) error {
	if d.err != nil {
		return d.err
	}
	d.payloads = append(d.payloads, payload)
	return nil
}

func fixtures() (pipeline.MatchResult, map[string]pipeline.VacancyRecord) {
	result := pipeline.MatchResult{
		UserID:      "u1",
		GeneratedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		Entries: []pipeline.ScoredVacancy{
			{Identity: "v1", Score: 0.9, MatchedSkills: []string{"go"}},
			{Identity: "v2", Score: 0.4, MatchedSkills: []string{"sql"}},
			{Identity: "missing", Score: 0.3},
		},
	}
	vacancies := map[string]pipeline.VacancyRecord{
		"v1": {Identity: "v1", Title: "Backend Engineer", Company: "Acme", URL: "https://a/1"},
		"v2": {Identity: "v2", Title: "Data Engineer", Company: "Beta", URL: "https://b/2"},
	}
	return result, vacancies
}

func TestAssembleMarksPreviouslyDelivered(t *testing.T) {
	t.Parallel()
	delivered := memory.NewDeliveredStore()
	ctx := context.Background()
	require.NoError(t, delivered.MarkDelivered(ctx, "u1", []string{"v2"}))

	a := New(delivered, &captureDeliverer{}, &fakeClock{}, zap.NewNop())
	result, vacancies := fixtures()
	payload, err := a.Assemble(ctx, result, vacancies)
	require.NoError(t, err)

	// Entries without a backing record are dropped.
	require.Len(t, payload.Items, 2)
	require.Equal(t, "v1", payload.Items[0].Identity)
	require.False(t, payload.Items[0].PreviouslyDelivered)
	require.Equal(t, "v2", payload.Items[1].Identity)
	require.True(t, payload.Items[1].PreviouslyDelivered)
}

func TestDispatchMarksOnlyNewItems(t *testing.T) {
	t.Parallel()
	delivered := memory.NewDeliveredStore()
	ctx := context.Background()
	require.NoError(t, delivered.MarkDelivered(ctx, "u1", []string{"v2"}))

	sink := &captureDeliverer{}
	a := New(delivered, sink, &fakeClock{}, zap.NewNop())
	result, vacancies := fixtures()
	payload, err := a.Assemble(ctx, result, vacancies)
	require.NoError(t, err)
	require.NoError(t, a.Dispatch(ctx, payload))
	require.Len(t, sink.payloads, 1)

	set, err := delivered.Delivered(ctx, "u1")
	require.NoError(t, err)
	require.True(t, set["v1"])
	require.True(t, set["v2"])
}

func TestDispatchFailureLeavesDeliveredSetUntouched(t *testing.T) {
	t.Parallel()
	delivered := memory.NewDeliveredStore()
	ctx := context.Background()

	sink := &captureDeliverer{err: errors.New("channel down")}
	a := New(delivered, sink, &fakeClock{}, zap.NewNop())
	result, vacancies := fixtures()
	payload, err := a.Assemble(ctx, result, vacancies)
	require.NoError(t, err)

	err = a.Dispatch(ctx, payload)
	require.Error(t, err)

	set, err := delivered.Delivered(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, set)
}
