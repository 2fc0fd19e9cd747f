package pipeline

import (
	"context"
	"time"
)

// Fetcher retrieves a single target URL, honoring per-host politeness and
// retry/backoff. Failures are returned as *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, target Target) (RawPayload, error)
}

// Parser converts a raw payload into a vacancy candidate. Failures are
// returned as *ParseError.
type Parser interface {
	Parse(payload RawPayload) (VacancyCandidate, error)
}

// VacancyStore persists reconciled vacancy records. Upsert must be atomic
// per identity; the change history is append-only.
type VacancyStore interface {
	Upsert(ctx context.Context, record VacancyRecord) error
	Get(ctx context.Context, identity string) (VacancyRecord, bool, error)
	ListActive(ctx context.Context) ([]VacancyRecord, error)
	ListAll(ctx context.Context) ([]VacancyRecord, error)
	AppendChange(ctx context.Context, entry ChangeEntry) error
	History(ctx context.Context, identity string) ([]ChangeEntry, error)
}

// RunStore persists crawl run progress and checkpoints.
type RunStore interface {
	Save(ctx context.Context, run CrawlRun) error
	Get(ctx context.Context, runID string) (CrawlRun, bool, error)
	LatestResumable(ctx context.Context) (CrawlRun, bool, error)
}

// ProfileSource reads user profiles from the external profile collaborator.
// The pipeline never writes profiles.
type ProfileSource interface {
	Profiles(ctx context.Context) ([]UserProfile, error)
}

// Deliverer hands a recommendation payload to the external delivery channel.
// A nil return is the acknowledgment that permits delivered-state updates.
type Deliverer interface {
	Deliver(ctx context.Context, payload RecommendationPayload) error
}

// DeliveredStore tracks the per-user last-delivered identity set, updated
// only after successful hand-off.
type DeliveredStore interface {
	Delivered(ctx context.Context, userID string) (map[string]bool, error)
	MarkDelivered(ctx context.Context, userID string, identities []string) error
}

// Archive persists raw fetched payloads for later reprocessing.
type Archive interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}

// Hasher computes digests for identity keys and content hashes.
type Hasher interface {
	Hash(data []byte) (string, error)
}
