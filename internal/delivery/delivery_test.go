package delivery

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobsight/jobsight/internal/pipeline"
)

func TestJSONDirDeliver(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	d, err := NewJSONDir(filepath.Join(dir, "spool"))
	require.NoError(t, err)

	payload := pipeline.RecommendationPayload{
		UserID:      "u1",
		GeneratedAt: time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC),
		Items: []pipeline.RecommendationItem{
			{Identity: "v1", Title: "Backend Engineer", Score: 0.9},
		},
	}
	require.NoError(t, d.Deliver(context.Background(), payload))

	data, err := os.ReadFile(filepath.Join(dir, "spool", "u1_20260302T083000.json"))
	require.NoError(t, err)

	var got pipeline.RecommendationPayload
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "u1", got.UserID)
	require.Len(t, got.Items, 1)
	require.Equal(t, "v1", got.Items[0].Identity)
}

func TestNewJSONDirRequiresPath(t *testing.T) {
	t.Parallel()
	_, err := NewJSONDir("")
	require.Error(t, err)
}

func TestLogDeliver(t *testing.T) {
	t.Parallel()
	d := NewLog(zap.NewNop())
	require.NoError(t, d.Deliver(context.Background(), pipeline.RecommendationPayload{UserID: "u1"}))
}
