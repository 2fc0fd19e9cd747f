// Package parser converts raw fetched payloads into vacancy candidates.
// Each known source layout has its own parsing strategy, selected by the
// source tag on the payload.
package parser

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jobsight/jobsight/internal/pipeline"
)

// ErrFiltered marks a candidate dropped by a source's title keyword filter.
// It is a skip, not a parse failure.
var ErrFiltered = errors.New("candidate filtered by title keywords")

// Strategy parses one known source layout.
type Strategy interface {
	Source() string
	ParseListing(payload pipeline.RawPayload) ([]pipeline.Target, error)
	ParseDetail(payload pipeline.RawPayload) (pipeline.VacancyCandidate, error)
}

// Registry resolves strategies by source name.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds a strategy, replacing any previous one for the same source.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Source()] = s
}

// Resolve returns the strategy for a source name.
func (r *Registry) Resolve(source string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[source]
	if !ok {
		return nil, fmt.Errorf("no parsing strategy registered for source %q", source)
	}
	return s, nil
}

// Parser implements pipeline.Parser by dispatching on the payload source tag.
type Parser struct {
	registry *Registry
}

// New wires a Parser over a strategy registry.
func New(registry *Registry) *Parser {
	return &Parser{registry: registry}
}

// Parse converts a detail-page payload into a candidate.
func (p *Parser) Parse(payload pipeline.RawPayload) (pipeline.VacancyCandidate, error) {
	strategy, err := p.registry.Resolve(payload.Source)
	if err != nil {
		return pipeline.VacancyCandidate{}, &pipeline.ParseError{
			Kind:   pipeline.ParseMalformedStructure,
			Source: payload.Source,
			URL:    payload.URL,
		}
	}
	return strategy.ParseDetail(payload)
}

// ParseListing extracts detail-page targets from a listing payload.
func (p *Parser) ParseListing(payload pipeline.RawPayload) ([]pipeline.Target, error) {
	strategy, err := p.registry.Resolve(payload.Source)
	if err != nil {
		return nil, &pipeline.ParseError{
			Kind:   pipeline.ParseMalformedStructure,
			Source: payload.Source,
			URL:    payload.URL,
		}
	}
	return strategy.ParseListing(payload)
}

// matchesKeywords reports whether the title passes a keyword pre-filter.
// An empty filter admits everything.
func matchesKeywords(title string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
