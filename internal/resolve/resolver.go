// Package resolve implements identity resolution and deduplication of
// vacancy candidates across crawl runs.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobsight/jobsight/internal/pipeline"
)

const fieldSep = "\x1f"

// Resolver reconciles candidates against the vacancy store. All writes to
// the store flow through Reconcile, which serializes per identity.
type Resolver struct {
	store     pipeline.VacancyStore
	hasher    pipeline.Hasher
	clock     pipeline.Clock
	threshold int
	logger    *zap.Logger

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	observed map[string]bool
}

// New constructs a Resolver. threshold is the miss-streak count after which
// an unobserved identity is marked removed.
func New(
	store pipeline.VacancyStore,
	hasher pipeline.Hasher,
	clock pipeline.Clock,
	threshold int,
	logger *zap.Logger,
) *Resolver {
	if threshold <= 0 {
		threshold = 3
	}
	return &Resolver{
		store:     store,
		hasher:    hasher,
		clock:     clock,
		threshold: threshold,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
		observed:  make(map[string]bool),
	}
}

// BeginPass resets per-pass state. seed carries identities already
// reconciled by a resumed run so they are not penalized in the removal pass.
func (r *Resolver) BeginPass(seed map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed = make(map[string]bool, len(seed))
	for id := range seed {
		r.observed[id] = true
	}
}

// Identity derives the stable key for a candidate: source plus external id
// when available, else a normalized title/company/location fallback.
func (r *Resolver) Identity(c pipeline.VacancyCandidate) string {
	var key string
	if c.ExternalID != "" {
		key = strings.Join([]string{c.Source, c.ExternalID}, fieldSep)
	} else {
		key = strings.Join([]string{
			normalizeKeyPart(c.Title),
			normalizeKeyPart(c.Company),
			normalizeKeyPart(c.Location),
		}, fieldSep)
	}
	digest, err := r.hasher.Hash([]byte(key))
	if err != nil {
		// SHA-256 over a byte slice cannot fail; keep the raw key as a
		// degenerate identity rather than dropping the candidate.
		return key
	}
	return digest
}

// Reconcile resolves one candidate into a vacancy record, applying the
// new/updated/unchanged transition and the same-run merge policy.
func (r *Resolver) Reconcile(ctx context.Context, c pipeline.VacancyCandidate) (pipeline.VacancyRecord, error) {
	identity := r.Identity(c)

	lock := r.identityLock(identity)
	lock.Lock()
	defer lock.Unlock()

	existing, found, err := r.store.Get(ctx, identity)
	if err != nil {
		return pipeline.VacancyRecord{}, fmt.Errorf("get %s: %w", identity, err)
	}

	now := r.clock.Now()
	record := r.buildRecord(identity, c, now)

	switch {
	case !found:
		record.Status = pipeline.StatusNew
		record.FirstSeen = now
	case r.observedThisPass(identity):
		// Two candidates in one run mapped to the same identity: keep the
		// most recently fetched field values and union the skill sets.
		record = r.merge(existing, record)
	case existing.Status == pipeline.StatusRemoved:
		// A posting that reappears after removal comes back as updated,
		// keeping its identity and history.
		record.Status = pipeline.StatusUpdated
		record.FirstSeen = existing.FirstSeen
	case existing.ContentHash == record.ContentHash:
		record.Status = pipeline.StatusUnchanged
		record.FirstSeen = existing.FirstSeen
	default:
		record.Status = pipeline.StatusUpdated
		record.FirstSeen = existing.FirstSeen
	}
	record.LastSeen = now
	record.MissStreak = 0

	if err := r.store.Upsert(ctx, record); err != nil {
		return pipeline.VacancyRecord{}, fmt.Errorf("upsert %s: %w", identity, err)
	}
	if record.Status != pipeline.StatusUnchanged {
		entry := pipeline.ChangeEntry{
			Identity:    identity,
			ContentHash: record.ContentHash,
			Status:      record.Status,
			ObservedAt:  now,
		}
		if err := r.store.AppendChange(ctx, entry); err != nil {
			return pipeline.VacancyRecord{}, fmt.Errorf("append change %s: %w", identity, err)
		}
	}

	r.markObserved(identity)
	return record, nil
}

// FinalizePass applies the miss-streak removal rule over every active
// identity that was not observed. It must run strictly after all discovery,
// fetch, and parse work for the run has completed.
func (r *Resolver) FinalizePass(ctx context.Context) ([]string, error) {
	all, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vacancies: %w", err)
	}

	now := r.clock.Now()
	var removed []string
	for _, rec := range all {
		if rec.Status == pipeline.StatusRemoved || r.observedThisPass(rec.Identity) {
			continue
		}
		rec.MissStreak++
		if rec.MissStreak >= r.threshold {
			rec.Status = pipeline.StatusRemoved
			removed = append(removed, rec.Identity)
		}
		if err := r.store.Upsert(ctx, rec); err != nil {
			return nil, fmt.Errorf("upsert %s: %w", rec.Identity, err)
		}
		if rec.Status == pipeline.StatusRemoved {
			entry := pipeline.ChangeEntry{
				Identity:    rec.Identity,
				ContentHash: rec.ContentHash,
				Status:      pipeline.StatusRemoved,
				ObservedAt:  now,
			}
			if err := r.store.AppendChange(ctx, entry); err != nil {
				return nil, fmt.Errorf("append change %s: %w", rec.Identity, err)
			}
		}
	}

	if len(removed) > 0 {
		r.logger.Info("removal pass complete",
			zap.Int("removed", len(removed)),
			zap.Int("threshold", r.threshold),
		)
	}
	sort.Strings(removed)
	return removed, nil
}

func (r *Resolver) buildRecord(identity string, c pipeline.VacancyCandidate, now time.Time) pipeline.VacancyRecord {
	record := pipeline.VacancyRecord{
		Identity:   identity,
		Source:     c.Source,
		ExternalID: c.ExternalID,
		URL:        c.URL,
		Title:      strings.TrimSpace(c.Title),
		Company:    strings.TrimSpace(c.Company),
		Skills:     sortedCopy(c.Skills),
		Salary:     c.Salary,
		Location:   strings.TrimSpace(c.Location),
		PostedAt:   c.PostedAt,
		FirstSeen:  now,
		LastSeen:   now,
	}
	record.ContentHash = r.contentHash(record)
	return record
}

// merge applies the same-run duplicate policy: newest field values win and
// skill sets are unioned. The status assigned by the first reconcile of the
// pass is preserved.
func (r *Resolver) merge(existing, latest pipeline.VacancyRecord) pipeline.VacancyRecord {
	merged := latest
	merged.FirstSeen = existing.FirstSeen
	merged.Status = existing.Status
	merged.Skills = unionSkills(existing.Skills, latest.Skills)
	if merged.Salary == nil {
		merged.Salary = existing.Salary
	}
	if merged.PostedAt.IsZero() {
		merged.PostedAt = existing.PostedAt
	}
	merged.ContentHash = r.contentHash(merged)
	return merged
}

// contentHash digests every tracked field so the hash changes iff one of
// them changes.
func (r *Resolver) contentHash(rec pipeline.VacancyRecord) string {
	parts := []string{
		rec.Source,
		rec.ExternalID,
		rec.URL,
		rec.Title,
		rec.Company,
		strings.Join(sortedCopy(rec.Skills), ","),
		encodeSalary(rec.Salary),
		rec.Location,
		encodeTime(rec.PostedAt),
	}
	digest, err := r.hasher.Hash([]byte(strings.Join(parts, fieldSep)))
	if err != nil {
		return strings.Join(parts, fieldSep)
	}
	return digest
}

func (r *Resolver) identityLock(identity string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[identity]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[identity] = lock
	}
	return lock
}

func (r *Resolver) markObserved(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed[identity] = true
}

func (r *Resolver) observedThisPass(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.observed[identity]
}

func normalizeKeyPart(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func sortedCopy(skills []string) []string {
	out := make([]string, len(skills))
	copy(out, skills)
	sort.Strings(out)
	return out
}

func unionSkills(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(sortedCopy(a), b...) {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func encodeSalary(s *pipeline.SalaryRange) string {
	if s == nil {
		return ""
	}
	return strings.Join([]string{
		strconv.FormatFloat(s.Low, 'f', -1, 64),
		strconv.FormatFloat(s.High, 'f', -1, 64),
		s.Currency,
	}, ":")
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
