package parser

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobsight/jobsight/internal/config"
	"github.com/jobsight/jobsight/internal/pipeline"
)

var salaryPattern = regexp.MustCompile(`(\d[\d,]*)\s*[-–~]\s*(\d[\d,]*)\s*([A-Za-z]{3})?`)

// HTMLStrategy parses a listing site whose page layout is described by
// goquery selectors from configuration. The page structure is an unstable
// contract; anything missing beyond the required fields is defaulted.
type HTMLStrategy struct {
	name      string
	selectors config.SelectorConfig
	keywords  []string
}

// NewHTMLStrategy builds a strategy for one configured HTML source.
func NewHTMLStrategy(src config.SourceConfig) *HTMLStrategy {
	return &HTMLStrategy{
		name:      src.Name,
		selectors: src.Selectors,
		keywords:  src.TitleKeywords,
	}
}

// Source returns the source tag this strategy handles.
func (s *HTMLStrategy) Source() string { return s.name }

// ParseListing extracts detail-page links from a listing page.
func (s *HTMLStrategy) ParseListing(payload pipeline.RawPayload) ([]pipeline.Target, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload.Body))
	if err != nil {
		return nil, &pipeline.ParseError{
			Kind:   pipeline.ParseMalformedStructure,
			Source: s.name,
			URL:    payload.URL,
		}
	}

	base, _ := url.Parse(payload.URL)
	var targets []pipeline.Target
	doc.Find(s.selectors.Item).Each(func(_ int, item *goquery.Selection) {
		link := item
		if s.selectors.Link != "" {
			link = item.Find(s.selectors.Link)
		}
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		targets = append(targets, pipeline.Target{
			Source: s.name,
			URL:    absoluteURL(base, href),
		})
	})
	return targets, nil
}

// ParseDetail extracts a vacancy candidate from a detail page.
func (s *HTMLStrategy) ParseDetail(payload pipeline.RawPayload) (pipeline.VacancyCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload.Body))
	if err != nil {
		return pipeline.VacancyCandidate{}, &pipeline.ParseError{
			Kind:   pipeline.ParseMalformedStructure,
			Source: s.name,
			URL:    payload.URL,
		}
	}

	title := text(doc, s.selectors.Title)
	if title == "" {
		return pipeline.VacancyCandidate{}, &pipeline.ParseError{
			Kind:   pipeline.ParseMissingRequiredField,
			Source: s.name,
			URL:    payload.URL,
			Field:  "title",
		}
	}
	if !matchesKeywords(title, s.keywords) {
		return pipeline.VacancyCandidate{}, ErrFiltered
	}

	description := text(doc, s.selectors.Description)
	var skills []string
	if s.selectors.Skills != "" {
		doc.Find(s.selectors.Skills).Each(func(_ int, sel *goquery.Selection) {
			skills = append(skills, sel.Text())
		})
	}
	skills = NormalizeSkills(skills)
	if len(skills) == 0 {
		skills = ExtractSkills(description)
	}
	if len(skills) == 0 && description == "" {
		return pipeline.VacancyCandidate{}, &pipeline.ParseError{
			Kind:   pipeline.ParseMissingRequiredField,
			Source: s.name,
			URL:    payload.URL,
			Field:  "skills",
		}
	}

	candidate := pipeline.VacancyCandidate{
		Source:      s.name,
		ExternalID:  s.externalID(doc),
		URL:         payload.URL,
		Title:       strings.TrimSpace(title),
		Company:     text(doc, s.selectors.Company),
		Skills:      skills,
		Salary:      parseSalary(text(doc, s.selectors.Salary)),
		Location:    text(doc, s.selectors.Location),
		PostedAt:    s.parsePosted(doc),
		FetchedAt:   payload.FetchedAt,
		Description: description,
	}
	return candidate, nil
}

func (s *HTMLStrategy) externalID(doc *goquery.Document) string {
	if s.selectors.ExternalID == "" {
		return ""
	}
	sel := doc.Find(s.selectors.ExternalID)
	if id, ok := sel.Attr("data-job-id"); ok {
		return id
	}
	if id, ok := sel.Attr("id"); ok {
		return id
	}
	return strings.TrimSpace(sel.Text())
}

func (s *HTMLStrategy) parsePosted(doc *goquery.Document) time.Time {
	raw := text(doc, s.selectors.Posted)
	if raw == "" {
		return time.Time{}
	}
	layout := s.selectors.PostedLayout
	if layout == "" {
		layout = "2006-01-02"
	}
	t, err := time.Parse(layout, raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func text(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

func absoluteURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// parseSalary extracts a "low - high CUR" band; anything unparseable is an
// unknown salary, never an error.
func parseSalary(raw string) *pipeline.SalaryRange {
	if raw == "" {
		return nil
	}
	m := salaryPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	low, err1 := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	high, err2 := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	currency := strings.ToUpper(m[3])
	if currency == "" {
		currency = "USD"
	}
	return &pipeline.SalaryRange{Low: low, High: high, Currency: currency}
}
