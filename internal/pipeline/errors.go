package pipeline

import "fmt"

// FetchErrorKind classifies fetch failures for the retry policy.
type FetchErrorKind string

// Fetch error kinds. Timeout, connection, and blocked are transient and
// retried with backoff; an HTTP status error is terminal for the target.
const (
	FetchTimeout    FetchErrorKind = "timeout"
	FetchHTTPStatus FetchErrorKind = "http_status"
	FetchConnection FetchErrorKind = "connection"
	FetchBlocked    FetchErrorKind = "blocked"
)

// FetchError is a typed fetch failure for one target URL.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying.
func (e *FetchError) Transient() bool {
	switch e.Kind {
	case FetchTimeout, FetchConnection, FetchBlocked:
		return true
	default:
		return false
	}
}

// ParseErrorKind classifies parse failures.
type ParseErrorKind string

// Parse error kinds. Both are local to the target and never abort a run.
const (
	ParseMissingRequiredField ParseErrorKind = "missing_required_field"
	ParseMalformedStructure   ParseErrorKind = "malformed_structure"
)

// ParseError is a typed parse failure for one payload.
type ParseError struct {
	Kind   ParseErrorKind
	Source string
	URL    string
	Field  string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse %s (%s): %s: %s", e.URL, e.Source, e.Kind, e.Field)
	}
	return fmt.Sprintf("parse %s (%s): %s", e.URL, e.Source, e.Kind)
}

// RunAbortError signals an unrecoverable run-level condition. The checkpoint
// is preserved so the next invocation resumes instead of re-crawling.
type RunAbortError struct {
	RunID  string
	Reason string
	Err    error
}

func (e *RunAbortError) Error() string {
	return fmt.Sprintf("run %s aborted: %s", e.RunID, e.Reason)
}

func (e *RunAbortError) Unwrap() error { return e.Err }
