package parser

import (
	"sort"
	"strings"
)

// skillSynonyms collapses common aliases onto canonical skill tokens.
// Unresolved tokens pass through verbatim; extraction is best-effort.
var skillSynonyms = map[string]string{
	"ml":                  "machine learning",
	"ai":                  "artificial intelligence",
	"dl":                  "deep learning",
	"golang":              "go",
	"js":                  "javascript",
	"ts":                  "typescript",
	"k8s":                 "kubernetes",
	"postgres":            "postgresql",
	"psql":                "postgresql",
	"gcp":                 "google cloud",
	"amazon web services": "aws",
	"ci/cd":               "cicd",
	"node":                "nodejs",
	"node.js":             "nodejs",
	"tf":                  "terraform",
	"py":                  "python",
	"elastic":             "elasticsearch",
	"mongo":               "mongodb",
	"ms sql":              "sql server",
	"data viz":            "data visualization",
	"nlp":                 "natural language processing",
	"etl":                 "data pipelines",
}

// NormalizeSkill lowercases, trims, and collapses a raw skill token onto its
// canonical form.
func NormalizeSkill(raw string) string {
	token := strings.ToLower(strings.TrimSpace(raw))
	token = strings.Join(strings.Fields(token), " ")
	if canonical, ok := skillSynonyms[token]; ok {
		return canonical
	}
	return token
}

// NormalizeSkills normalizes, deduplicates, and sorts a token list.
func NormalizeSkills(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		token := NormalizeSkill(r)
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// ExtractSkills scans free text for known skill vocabulary. It complements
// explicit skill fields when a source only exposes a description.
func ExtractSkills(text string) []string {
	if text == "" {
		return nil
	}
	lower := " " + strings.ToLower(text) + " "
	var found []string
	for _, token := range skillVocabulary() {
		if containsToken(lower, token) {
			found = append(found, NormalizeSkill(token))
		}
	}
	return NormalizeSkills(found)
}

func skillVocabulary() []string {
	vocab := []string{
		"python", "sql", "go", "java", "javascript", "typescript", "c++",
		"rust", "docker", "kubernetes", "aws", "azure", "google cloud",
		"terraform", "spark", "hadoop", "kafka", "airflow", "dbt",
		"postgresql", "mysql", "redis", "mongodb", "elasticsearch",
		"machine learning", "deep learning", "data visualization",
		"tableau", "power bi", "excel", "pandas", "numpy", "scikit-learn",
		"tensorflow", "pytorch", "nlp", "linux", "git",
	}
	for alias := range skillSynonyms {
		vocab = append(vocab, alias)
	}
	sort.Strings(vocab)
	return vocab
}

// containsToken matches token at word boundaries within the padded haystack.
func containsToken(padded, token string) bool {
	idx := 0
	for {
		i := strings.Index(padded[idx:], token)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(token)
		before := padded[start-1]
		after := padded[end]
		if isBoundary(before) && isBoundary(after) {
			return true
		}
		idx = start + 1
	}
}

func isBoundary(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return false
	case b == '+' || b == '#':
		// keeps c++ and c# from matching inside themselves
		return false
	}
	return true
}
