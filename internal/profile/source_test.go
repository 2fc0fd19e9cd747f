package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jobsight/jobsight/internal/pipeline"
)

func TestFileSource(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "profiles.json")
	doc := `[
		{
			"id": "u1",
			"skills": {"go": 2, "sql": 1},
			"locations": ["Berlin"],
			"salary_floor": 90000
		}
	]`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	profiles, err := NewFileSource(path).Profiles(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	require.Equal(t, "u1", profiles[0].ID)
	require.Equal(t, 2.0, profiles[0].Skills["go"])
	require.Equal(t, []string{"Berlin"}, profiles[0].Locations)
	require.NotNil(t, profiles[0].SalaryFloor)
	require.Equal(t, 90000.0, *profiles[0].SalaryFloor)
}

func TestFileSourceMissingFile(t *testing.T) {
	t.Parallel()
	_, err := NewFileSource(filepath.Join(t.TempDir(), "absent.json")).Profiles(context.Background())
	require.Error(t, err)
}

func TestFileSourceMalformed(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "profiles.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"a list"}`), 0o600))
	_, err := NewFileSource(path).Profiles(context.Background())
	require.Error(t, err)
}

func TestStaticSource(t *testing.T) {
	t.Parallel()
	want := []pipeline.UserProfile{{ID: "u1"}}
	got, err := NewStaticSource(want).Profiles(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)
}
