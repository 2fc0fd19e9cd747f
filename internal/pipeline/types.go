// Package pipeline defines the core types and interfaces shared across the
// ingestion-to-recommendation pipeline: vacancy records, crawl runs, user
// profiles, and match results.
package pipeline

import (
	"time"
)

// VacancyStatus describes how a vacancy record changed relative to the
// previous crawl run.
type VacancyStatus string

// Vacancy status values persisted in the vacancy store.
const (
	StatusNew       VacancyStatus = "new"
	StatusUpdated   VacancyStatus = "updated"
	StatusUnchanged VacancyStatus = "unchanged"
	StatusRemoved   VacancyStatus = "removed"
)

// SalaryRange is an optional salary band attached to a vacancy.
type SalaryRange struct {
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
	Currency string  `json:"currency"`
}

// VacancyCandidate is the parser's output for a single posting, before
// identity resolution. Skills are already normalized tokens.
type VacancyCandidate struct {
	Source      string
	ExternalID  string
	URL         string
	Title       string
	Company     string
	Skills      []string
	Salary      *SalaryRange
	Location    string
	PostedAt    time.Time
	FetchedAt   time.Time
	Description string
}

// VacancyRecord is the canonical, reconciled form of a posting. Identity is
// stable for the life of the posting; ContentHash changes iff any tracked
// field changes.
type VacancyRecord struct {
	Identity    string        `json:"identity"`
	Source      string        `json:"source"`
	ExternalID  string        `json:"external_id,omitempty"`
	URL         string        `json:"url"`
	Title       string        `json:"title"`
	Company     string        `json:"company"`
	Skills      []string      `json:"skills"`
	Salary      *SalaryRange  `json:"salary,omitempty"`
	Location    string        `json:"location"`
	PostedAt    time.Time     `json:"posted_at"`
	FirstSeen   time.Time     `json:"first_seen"`
	LastSeen    time.Time     `json:"last_seen"`
	ContentHash string        `json:"content_hash"`
	Status      VacancyStatus `json:"status"`
	MissStreak  int           `json:"miss_streak"`
}

// Active reports whether the record should be visible to the matcher.
func (r VacancyRecord) Active() bool {
	return r.Status != StatusRemoved
}

// ChangeEntry is one row of the append-only change history per identity.
type ChangeEntry struct {
	Identity    string        `json:"identity"`
	ContentHash string        `json:"content_hash"`
	Status      VacancyStatus `json:"status"`
	ObservedAt  time.Time     `json:"observed_at"`
}

// UserProfile is read-only input owned by the profile-management
// collaborator. Skills map normalized tokens to weights.
type UserProfile struct {
	ID           string             `json:"id"`
	Skills       map[string]float64 `json:"skills"`
	Locations    []string           `json:"locations,omitempty"`
	SalaryFloor  *float64           `json:"salary_floor,omitempty"`
	HalfLifeDays float64            `json:"half_life_days,omitempty"`
}

// RunState is the lifecycle state of a crawl run.
type RunState string

// Run states, in state-machine order.
const (
	RunPending         RunState = "pending"
	RunDiscovering     RunState = "discovering"
	RunFetchingDetails RunState = "fetching_details"
	RunReconciling     RunState = "reconciling"
	RunFinalizing      RunState = "finalizing"
	RunCompleted       RunState = "completed"
	RunAborted         RunState = "aborted"
)

// Terminal reports whether the state seals the run.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunAborted
}

// TargetOutcome classifies how a single discovery target ended.
type TargetOutcome string

// Per-target outcomes recorded on the run.
const (
	OutcomeSuccess    TargetOutcome = "success"
	OutcomeFetchError TargetOutcome = "fetch_error"
	OutcomeParseError TargetOutcome = "parse_error"
)

// TargetResult records the terminal outcome for one target URL.
type TargetResult struct {
	URL       string        `json:"url"`
	Source    string        `json:"source"`
	Outcome   TargetOutcome `json:"outcome"`
	ErrorText string        `json:"error_text,omitempty"`
}

// Target is one detail page to fetch, produced by the discovery phase.
type Target struct {
	Source string `json:"source"`
	URL    string `json:"url"`
}

// CrawlRun tracks run-level progress. Cursor and Reconciled form the
// checkpoint that makes an aborted run resumable.
type CrawlRun struct {
	ID         string                  `json:"id"`
	State      RunState                `json:"state"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
	ErrorText  string                  `json:"error_text,omitempty"`
	Cursor     int                     `json:"cursor"`
	Targets    []Target                `json:"targets,omitempty"`
	Reconciled map[string]bool         `json:"reconciled,omitempty"`
	Outcomes   map[string]TargetResult `json:"outcomes,omitempty"`
}

// RecordOutcome stores the terminal result for a target URL.
func (r *CrawlRun) RecordOutcome(res TargetResult) {
	if r.Outcomes == nil {
		r.Outcomes = make(map[string]TargetResult)
	}
	r.Outcomes[res.URL] = res
}

// MarkReconciled notes that an identity was observed during this run.
func (r *CrawlRun) MarkReconciled(identity string) {
	if r.Reconciled == nil {
		r.Reconciled = make(map[string]bool)
	}
	r.Reconciled[identity] = true
}

// RawPayload is the fetcher's output: raw bytes plus the source tag used to
// select a parsing strategy.
type RawPayload struct {
	Source     string
	URL        string
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
}

// ScoredVacancy is a single ranked entry with its audit trail.
type ScoredVacancy struct {
	Identity      string   `json:"identity"`
	Score         float64  `json:"score"`
	MatchedSkills []string `json:"matched_skills"`
}

// MatchResult is the ordered recommendation list for one user, recomputed
// fully each delivery cycle. It is derived data, never a source of record.
type MatchResult struct {
	UserID      string          `json:"user_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Entries     []ScoredVacancy `json:"entries"`
}

// RecommendationItem is one vacancy in a delivery payload.
type RecommendationItem struct {
	Identity            string   `json:"identity"`
	Title               string   `json:"title"`
	Company             string   `json:"company"`
	URL                 string   `json:"url"`
	Location            string   `json:"location,omitempty"`
	Score               float64  `json:"score"`
	MatchedSkills       []string `json:"matched_skills"`
	PreviouslyDelivered bool     `json:"previously_delivered"`
}

// RecommendationPayload is the delivery-ready package handed to the external
// delivery collaborator.
type RecommendationPayload struct {
	UserID      string               `json:"user_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Items       []RecommendationItem `json:"items"`
}
