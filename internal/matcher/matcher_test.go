package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobsight/jobsight/internal/pipeline"
)

var matchNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func vacancy(identity string, skills []string, postedDaysAgo int) pipeline.VacancyRecord {
	return pipeline.VacancyRecord{
		Identity: identity,
		Status:   pipeline.StatusNew,
		Title:    "Engineer",
		Company:  "Acme",
		Skills:   skills,
		Location: "Berlin",
		PostedAt: matchNow.AddDate(0, 0, -postedDaysAgo),
		LastSeen: matchNow,
	}
}

func TestScoreRanksOverlapAndRecency(t *testing.T) {
	t.Parallel()
	m := New(Config{
		Weights:      Weights{Skill: 0.6, Location: 0.2, Recency: 0.2},
		MinScore:     0,
		TopK:         10,
		HalfLifeDays: 14,
	})
	profile := pipeline.UserProfile{
		ID:     "u1",
		Skills: map[string]float64{"python": 1, "sql": 1},
	}
	vacancies := []pipeline.VacancyRecord{
		vacancy("v2", []string{"python"}, 30),
		vacancy("v1", []string{"python", "sql", "docker"}, 0),
	}

	result := m.Score(profile, vacancies, matchNow)
	require.Len(t, result.Entries, 2)
	require.Equal(t, "v1", result.Entries[0].Identity)
	require.Equal(t, "v2", result.Entries[1].Identity)
	require.Greater(t, result.Entries[0].Score, result.Entries[1].Score)
	require.Equal(t, []string{"python", "sql"}, result.Entries[0].MatchedSkills)
	require.Equal(t, []string{"python"}, result.Entries[1].MatchedSkills)
}

func TestScoreIsDeterministic(t *testing.T) {
	t.Parallel()
	m := New(Config{
		Weights:      Weights{Skill: 0.5, Location: 0.2, Salary: 0.1, Recency: 0.2},
		MinScore:     0.05,
		TopK:         5,
		HalfLifeDays: 14,
	})
	profile := pipeline.UserProfile{
		ID:        "u1",
		Skills:    map[string]float64{"go": 2, "kubernetes": 1, "sql": 1},
		Locations: []string{"Berlin", "Remote"},
	}
	vacancies := []pipeline.VacancyRecord{
		vacancy("a", []string{"go", "sql"}, 3),
		vacancy("b", []string{"kubernetes"}, 1),
		vacancy("c", []string{"go", "kubernetes", "sql"}, 10),
		vacancy("d", []string{"cobol"}, 2),
	}

	first := m.Score(profile, vacancies, matchNow)
	second := m.Score(profile, vacancies, matchNow)
	require.Equal(t, first, second)
}

func TestScoreDeterministicWithInexactWeights(t *testing.T) {
	t.Parallel()
	m := New(Config{Weights: Weights{Skill: 1}, TopK: 10})

	// Weights like 0.1 carry rounding error, so the summation order of the
	// profile map would leak into the score if it were not fixed.
	names := []string{
		"airflow", "docker", "go", "kafka", "kubernetes",
		"python", "redis", "spark", "sql", "terraform",
	}
	skills := make(map[string]float64, len(names))
	for i, n := range names {
		skills[n] = float64(i+1) / 10
	}
	profile := pipeline.UserProfile{ID: "u1", Skills: skills}
	vacancies := []pipeline.VacancyRecord{vacancy("v1", names[:5], 1)}

	first := m.Score(profile, vacancies, matchNow)
	require.Len(t, first.Entries, 1)
	for i := 0; i < 2000; i++ {
		require.Equal(t, first, m.Score(profile, vacancies, matchNow))
	}
}

func TestScoreTieBreaksByPostedThenIdentity(t *testing.T) {
	t.Parallel()
	m := New(Config{
		Weights: Weights{Skill: 1},
		TopK:    10,
	})
	profile := pipeline.UserProfile{ID: "u1", Skills: map[string]float64{"go": 1}}

	older := vacancy("zz", []string{"go"}, 5)
	newer := vacancy("aa", []string{"go"}, 1)
	twinA := vacancy("aa-twin", []string{"go"}, 1)

	// Recency weight is zero so all three score identically.
	result := m.Score(profile, []pipeline.VacancyRecord{older, twinA, newer}, matchNow)
	require.Len(t, result.Entries, 3)
	require.Equal(t, "aa", result.Entries[0].Identity)
	require.Equal(t, "aa-twin", result.Entries[1].Identity)
	require.Equal(t, "zz", result.Entries[2].Identity)
}

func TestScoreFiltersBelowMinScoreAndRemoved(t *testing.T) {
	t.Parallel()
	m := New(Config{
		Weights:  Weights{Skill: 1},
		MinScore: 0.5,
		TopK:     10,
	})
	profile := pipeline.UserProfile{ID: "u1", Skills: map[string]float64{"go": 1, "sql": 1}}

	removed := vacancy("gone", []string{"go", "sql"}, 0)
	removed.Status = pipeline.StatusRemoved
	weak := vacancy("weak", []string{"cobol"}, 0)
	half := vacancy("half", []string{"go"}, 0)

	result := m.Score(profile, []pipeline.VacancyRecord{removed, weak, half}, matchNow)
	require.Len(t, result.Entries, 1)
	require.Equal(t, "half", result.Entries[0].Identity)
	require.InDelta(t, 0.5, result.Entries[0].Score, 1e-9)
}

func TestScoreSalaryFloor(t *testing.T) {
	t.Parallel()
	m := New(Config{Weights: Weights{Salary: 1}, TopK: 10})
	floor := 90000.0
	profile := pipeline.UserProfile{
		ID:          "u1",
		Skills:      map[string]float64{"go": 1},
		SalaryFloor: &floor,
	}

	meets := vacancy("meets", nil, 0)
	meets.Salary = &pipeline.SalaryRange{Low: 80000, High: 95000, Currency: "USD"}
	below := vacancy("below", nil, 0)
	below.Salary = &pipeline.SalaryRange{Low: 60000, High: 80000, Currency: "USD"}
	unknown := vacancy("unknown", nil, 0)

	result := m.Score(profile, []pipeline.VacancyRecord{meets, below, unknown}, matchNow)
	byID := make(map[string]float64, len(result.Entries))
	for _, e := range result.Entries {
		byID[e.Identity] = e.Score
	}
	require.InDelta(t, 1.0, byID["meets"], 1e-9)
	require.Zero(t, byID["below"])
	require.Zero(t, byID["unknown"])
}

func TestScoreCapsAtTopK(t *testing.T) {
	t.Parallel()
	m := New(Config{Weights: Weights{Skill: 1}, TopK: 2})
	profile := pipeline.UserProfile{ID: "u1", Skills: map[string]float64{"go": 1}}

	vacancies := []pipeline.VacancyRecord{
		vacancy("a", []string{"go"}, 3),
		vacancy("b", []string{"go"}, 2),
		vacancy("c", []string{"go"}, 1),
	}
	result := m.Score(profile, vacancies, matchNow)
	require.Len(t, result.Entries, 2)
	require.Equal(t, "c", result.Entries[0].Identity)
	require.Equal(t, "b", result.Entries[1].Identity)
}

func TestRecencyHalfLife(t *testing.T) {
	t.Parallel()
	m := New(Config{Weights: Weights{Recency: 1}, HalfLifeDays: 14, TopK: 10})
	profile := pipeline.UserProfile{ID: "u1", Skills: map[string]float64{"go": 1}}

	fresh := vacancy("fresh", nil, 0)
	aged := vacancy("aged", nil, 14)

	result := m.Score(profile, []pipeline.VacancyRecord{fresh, aged}, matchNow)
	require.Len(t, result.Entries, 2)
	require.InDelta(t, 1.0, result.Entries[0].Score, 1e-9)
	require.InDelta(t, 0.5, result.Entries[1].Score, 1e-9)
}
