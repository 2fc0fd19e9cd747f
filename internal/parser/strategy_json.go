package parser

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jobsight/jobsight/internal/config"
	"github.com/jobsight/jobsight/internal/pipeline"
)

// JSONStrategy parses sources that expose a JSON API instead of HTML pages.
type JSONStrategy struct {
	name     string
	keywords []string
}

// NewJSONStrategy builds a strategy for one configured JSON source.
func NewJSONStrategy(src config.SourceConfig) *JSONStrategy {
	return &JSONStrategy{
		name:     src.Name,
		keywords: src.TitleKeywords,
	}
}

// Source returns the source tag this strategy handles.
func (s *JSONStrategy) Source() string { return s.name }

type jsonListing struct {
	Jobs []struct {
		URL string `json:"url"`
	} `json:"jobs"`
}

type jsonDetail struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Company  string   `json:"company"`
	Location string   `json:"location"`
	Skills   []string `json:"skills"`
	Salary   *struct {
		Low      float64 `json:"low"`
		High     float64 `json:"high"`
		Currency string  `json:"currency"`
	} `json:"salary"`
	PostedAt    string `json:"posted_at"`
	Description string `json:"description"`
}

// ParseListing extracts detail targets from a JSON listing response.
func (s *JSONStrategy) ParseListing(payload pipeline.RawPayload) ([]pipeline.Target, error) {
	var listing jsonListing
	if err := json.Unmarshal(payload.Body, &listing); err != nil {
		return nil, &pipeline.ParseError{
			Kind:   pipeline.ParseMalformedStructure,
			Source: s.name,
			URL:    payload.URL,
		}
	}
	targets := make([]pipeline.Target, 0, len(listing.Jobs))
	for _, job := range listing.Jobs {
		if job.URL == "" {
			continue
		}
		targets = append(targets, pipeline.Target{Source: s.name, URL: job.URL})
	}
	return targets, nil
}

// ParseDetail extracts a vacancy candidate from a JSON detail response.
func (s *JSONStrategy) ParseDetail(payload pipeline.RawPayload) (pipeline.VacancyCandidate, error) {
	var detail jsonDetail
	if err := json.Unmarshal(payload.Body, &detail); err != nil {
		return pipeline.VacancyCandidate{}, &pipeline.ParseError{
			Kind:   pipeline.ParseMalformedStructure,
			Source: s.name,
			URL:    payload.URL,
		}
	}
	if strings.TrimSpace(detail.Title) == "" {
		return pipeline.VacancyCandidate{}, &pipeline.ParseError{
			Kind:   pipeline.ParseMissingRequiredField,
			Source: s.name,
			URL:    payload.URL,
			Field:  "title",
		}
	}
	if !matchesKeywords(detail.Title, s.keywords) {
		return pipeline.VacancyCandidate{}, ErrFiltered
	}

	skills := NormalizeSkills(detail.Skills)
	if len(skills) == 0 {
		skills = ExtractSkills(detail.Description)
	}
	if len(skills) == 0 && detail.Description == "" {
		return pipeline.VacancyCandidate{}, &pipeline.ParseError{
			Kind:   pipeline.ParseMissingRequiredField,
			Source: s.name,
			URL:    payload.URL,
			Field:  "skills",
		}
	}

	var salary *pipeline.SalaryRange
	if detail.Salary != nil {
		currency := strings.ToUpper(detail.Salary.Currency)
		if currency == "" {
			currency = "USD"
		}
		salary = &pipeline.SalaryRange{
			Low:      detail.Salary.Low,
			High:     detail.Salary.High,
			Currency: currency,
		}
	}

	var posted time.Time
	if detail.PostedAt != "" {
		if t, err := time.Parse(time.RFC3339, detail.PostedAt); err == nil {
			posted = t.UTC()
		}
	}

	return pipeline.VacancyCandidate{
		Source:      s.name,
		ExternalID:  detail.ID,
		URL:         payload.URL,
		Title:       strings.TrimSpace(detail.Title),
		Company:     strings.TrimSpace(detail.Company),
		Skills:      skills,
		Salary:      salary,
		Location:    strings.TrimSpace(detail.Location),
		PostedAt:    posted,
		FetchedAt:   payload.FetchedAt,
		Description: detail.Description,
	}, nil
}

// FromConfig builds a registry with one strategy per configured source.
func FromConfig(sources []config.SourceConfig) *Registry {
	registry := NewRegistry()
	for _, src := range sources {
		switch src.Kind {
		case "json":
			registry.Register(NewJSONStrategy(src))
		default:
			registry.Register(NewHTMLStrategy(src))
		}
	}
	return registry
}
