package memory

import (
	"context"
	"sync"

	"github.com/jobsight/jobsight/internal/pipeline"
)

// RunStore is an in-memory pipeline.RunStore.
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]pipeline.CrawlRun
	order []string
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]pipeline.CrawlRun)}
}

// Save stores the run snapshot, keyed by run ID.
func (s *RunStore) Save(_ context.Context, run pipeline.CrawlRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; !exists {
		s.order = append(s.order, run.ID)
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

// Get fetches a run by ID.
func (s *RunStore) Get(_ context.Context, runID string) (pipeline.CrawlRun, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return pipeline.CrawlRun{}, false, nil
	}
	return cloneRun(run), true, nil
}

// LatestResumable returns the most recent aborted run, if any. Completed
// runs are sealed and never resumed.
func (s *RunStore) LatestResumable(_ context.Context) (pipeline.CrawlRun, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		run := s.runs[s.order[i]]
		if run.State == pipeline.RunAborted {
			return cloneRun(run), true, nil
		}
		if run.State == pipeline.RunCompleted {
			return pipeline.CrawlRun{}, false, nil
		}
	}
	return pipeline.CrawlRun{}, false, nil
}

func cloneRun(run pipeline.CrawlRun) pipeline.CrawlRun {
	out := run
	out.Targets = append([]pipeline.Target(nil), run.Targets...)
	if run.Reconciled != nil {
		out.Reconciled = make(map[string]bool, len(run.Reconciled))
		for k, v := range run.Reconciled {
			out.Reconciled[k] = v
		}
	}
	if run.Outcomes != nil {
		out.Outcomes = make(map[string]pipeline.TargetResult, len(run.Outcomes))
		for k, v := range run.Outcomes {
			out.Outcomes[k] = v
		}
	}
	return out
}
