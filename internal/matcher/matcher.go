// Package matcher scores the live vacancy set against user profiles and
// produces ranked, explainable recommendation lists.
package matcher

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jobsight/jobsight/internal/pipeline"
)

// Weights holds the scoring weights for each signal.
type Weights struct {
	Skill    float64
	Location float64
	Salary   float64
	Recency  float64
}

// Config controls scoring and ranking behavior.
type Config struct {
	Weights      Weights
	MinScore     float64
	TopK         int
	HalfLifeDays float64
}

// Matcher computes match results. Score is pure: no side effects, byte-
// identical output for identical inputs.
type Matcher struct {
	cfg Config
}

// New constructs a Matcher.
func New(cfg Config) *Matcher {
	if cfg.TopK <= 0 {
		cfg.TopK = 20
	}
	if cfg.HalfLifeDays <= 0 {
		cfg.HalfLifeDays = 14
	}
	return &Matcher{cfg: cfg}
}

// Score ranks all non-removed vacancies for one profile. Vacancies scoring
// below the minimum-relevance threshold are excluded entirely. Ties order by
// most-recent posted date, then identity, for full determinism.
func (m *Matcher) Score(profile pipeline.UserProfile, vacancies []pipeline.VacancyRecord, now time.Time) pipeline.MatchResult {
	entries := make([]pipeline.ScoredVacancy, 0, len(vacancies))
	posted := make(map[string]time.Time, len(vacancies))

	for _, v := range vacancies {
		if !v.Active() {
			continue
		}
		score, matched := m.scoreVacancy(profile, v, now)
		if score < m.cfg.MinScore {
			continue
		}
		entries = append(entries, pipeline.ScoredVacancy{
			Identity:      v.Identity,
			Score:         score,
			MatchedSkills: matched,
		})
		posted[v.Identity] = postedOrLastSeen(v)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		pi, pj := posted[entries[i].Identity], posted[entries[j].Identity]
		if !pi.Equal(pj) {
			return pi.After(pj)
		}
		return entries[i].Identity < entries[j].Identity
	})

	if len(entries) > m.cfg.TopK {
		entries = entries[:m.cfg.TopK]
	}

	return pipeline.MatchResult{
		UserID:      profile.ID,
		GeneratedAt: now,
		Entries:     entries,
	}
}

func (m *Matcher) scoreVacancy(profile pipeline.UserProfile, v pipeline.VacancyRecord, now time.Time) (float64, []string) {
	w := m.cfg.Weights

	overlap, matched := skillOverlap(profile.Skills, v.Skills)
	score := overlap * w.Skill

	if locationMatch(profile.Locations, v.Location) {
		score += w.Location
	}
	if salarySatisfied(profile.SalaryFloor, v.Salary) {
		score += w.Salary
	}
	score += w.Recency * m.recencyFactor(profile, v, now)

	return score, matched
}

// skillOverlap returns the matched fraction of the profile's total skill
// weight plus the matched tokens for the explanation payload. Weights are
// summed in sorted key order; float addition order changes the low bits, and
// the score must be bit-identical across calls.
func skillOverlap(profileSkills map[string]float64, vacancySkills []string) (float64, []string) {
	if len(profileSkills) == 0 {
		return 0, nil
	}
	have := make(map[string]struct{}, len(vacancySkills))
	for _, s := range vacancySkills {
		have[strings.ToLower(s)] = struct{}{}
	}

	tokens := make([]string, 0, len(profileSkills))
	for token := range profileSkills {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	var total, matchedWeight float64
	var matched []string
	for _, token := range tokens {
		weight := profileSkills[token]
		total += weight
		if _, ok := have[strings.ToLower(token)]; ok {
			matchedWeight += weight
			matched = append(matched, strings.ToLower(token))
		}
	}
	if total == 0 {
		return 0, nil
	}
	sort.Strings(matched)
	return matchedWeight / total, matched
}

// locationMatch treats an empty preference list as no constraint.
func locationMatch(preferred []string, location string) bool {
	if len(preferred) == 0 {
		return true
	}
	loc := strings.ToLower(strings.TrimSpace(location))
	for _, p := range preferred {
		if strings.ToLower(strings.TrimSpace(p)) == loc {
			return true
		}
	}
	return false
}

// salarySatisfied is conservative: an unknown salary never satisfies an
// explicit floor.
func salarySatisfied(floor *float64, salary *pipeline.SalaryRange) bool {
	if floor == nil {
		return true
	}
	if salary == nil {
		return false
	}
	return salary.High >= *floor
}

// recencyFactor decays by half per half-life period of posting age.
func (m *Matcher) recencyFactor(profile pipeline.UserProfile, v pipeline.VacancyRecord, now time.Time) float64 {
	halfLife := m.cfg.HalfLifeDays
	if profile.HalfLifeDays > 0 {
		halfLife = profile.HalfLifeDays
	}
	ref := postedOrLastSeen(v)
	if ref.IsZero() {
		return 0
	}
	ageDays := now.Sub(ref).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp2(-ageDays / halfLife)
}

func postedOrLastSeen(v pipeline.VacancyRecord) time.Time {
	if !v.PostedAt.IsZero() {
		return v.PostedAt
	}
	return v.LastSeen
}
