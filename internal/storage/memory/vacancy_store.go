// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jobsight/jobsight/internal/pipeline"
)

// VacancyStore is an in-memory pipeline.VacancyStore.
type VacancyStore struct {
	mu      sync.RWMutex
	records map[string]pipeline.VacancyRecord
	history map[string][]pipeline.ChangeEntry
}

// NewVacancyStore constructs a VacancyStore.
func NewVacancyStore() *VacancyStore {
	return &VacancyStore{
		records: make(map[string]pipeline.VacancyRecord),
		history: make(map[string][]pipeline.ChangeEntry),
	}
}

// Upsert stores the record by identity.
func (s *VacancyStore) Upsert(_ context.Context, record pipeline.VacancyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Identity] = record
	return nil
}

// Get fetches a record by identity.
func (s *VacancyStore) Get(_ context.Context, identity string) (pipeline.VacancyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[identity]
	return rec, ok, nil
}

// ListActive returns all non-removed records, ordered by identity.
func (s *VacancyStore) ListActive(_ context.Context) ([]pipeline.VacancyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pipeline.VacancyRecord
	for _, rec := range s.records {
		if rec.Active() {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

// ListAll returns every record including removed ones, ordered by identity.
func (s *VacancyStore) ListAll(_ context.Context) ([]pipeline.VacancyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pipeline.VacancyRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

// AppendChange appends to the identity's change history.
func (s *VacancyStore) AppendChange(_ context.Context, entry pipeline.ChangeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[entry.Identity] = append(s.history[entry.Identity], entry)
	return nil
}

// History returns the change history for an identity, oldest first.
func (s *VacancyStore) History(_ context.Context, identity string) ([]pipeline.ChangeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.history[identity]
	out := make([]pipeline.ChangeEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func sortRecords(records []pipeline.VacancyRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Identity < records[j].Identity
	})
}
