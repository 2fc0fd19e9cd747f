package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobsight/jobsight/internal/config"
	"github.com/jobsight/jobsight/internal/pipeline"
	"github.com/jobsight/jobsight/internal/profile"
)

type captureDeliverer struct {
	payloads []pipeline.RecommendationPayload
}

func (d *captureDeliverer) Deliver(_ context.Context, payload pipeline.RecommendationPayload) error {
	d.payloads = append(d.payloads, payload)
	return nil
}

func TestNewDefaultsToMemoryProviders(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Vacancies)
	require.NotNil(t, a.Runs)
	require.NotNil(t, a.Delivered)
	require.NotNil(t, a.Archive)
}

func TestRunRecommendDeliversAndTracksState(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, a.Vacancies.Upsert(ctx, pipeline.VacancyRecord{
		Identity:  "v1",
		Source:    "acme",
		URL:       "https://jobs.acme.test/1",
		Title:     "Backend Engineer",
		Company:   "Acme",
		Skills:    []string{"go"},
		Status:    pipeline.StatusNew,
		PostedAt:  now.AddDate(0, 0, -1),
		FirstSeen: now,
		LastSeen:  now,
	}))
	require.NoError(t, a.Vacancies.Upsert(ctx, pipeline.VacancyRecord{
		Identity: "gone",
		Title:    "Old Role",
		Skills:   []string{"go"},
		Status:   pipeline.StatusRemoved,
	}))

	profiles := profile.NewStaticSource([]pipeline.UserProfile{
		{ID: "u1", Skills: map[string]float64{"go": 1}},
	})
	sink := &captureDeliverer{}

	require.NoError(t, a.RunRecommend(ctx, profiles, sink))
	require.Len(t, sink.payloads, 1)
	require.Equal(t, "u1", sink.payloads[0].UserID)
	require.Len(t, sink.payloads[0].Items, 1)
	require.Equal(t, "v1", sink.payloads[0].Items[0].Identity)
	require.False(t, sink.payloads[0].Items[0].PreviouslyDelivered)

	// The second cycle re-recommends the same vacancy but marks it as
	// already delivered.
	require.NoError(t, a.RunRecommend(ctx, profiles, sink))
	require.Len(t, sink.payloads, 2)
	require.True(t, sink.payloads[1].Items[0].PreviouslyDelivered)

	delivered, err := a.Delivered.Delivered(ctx, "u1")
	require.NoError(t, err)
	require.True(t, delivered["v1"])
}
