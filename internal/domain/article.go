package domain

import (
	"fmt"
	"time"
)

// ArticleReference identifies one article found in an issue listing, with
// whatever metadata the listing exposed. Missing fields are filled later
// from the article landing page.
type ArticleReference struct {
	ID         string
	Issue      string
	Section    string
	Year       string
	Title      string
	Authors    string
	Pages      string
	LandingURL string
	GalleyURL  string
}

// NeedsEnrichment reports whether the landing page should be consulted.
func (r ArticleReference) NeedsEnrichment() bool {
	return r.Title == "" || r.Authors == "" || r.GalleyURL == ""
}

// AcquisitionSource enumerates how a document artifact was obtained.
type AcquisitionSource string

const (
	SourceCache   AcquisitionSource = "cache"
	SourceDirect  AcquisitionSource = "direct"
	SourceBrowser AcquisitionSource = "browser"
)

// AcquiredDocument is a PDF artifact on local disk.
type AcquiredDocument struct {
	ArticleID string
	Path      string
	Size      int64
	Source    AcquisitionSource
}

// FailureReason tags why an article fell out of the pipeline.
type FailureReason string

const (
	ReasonTitleLanguage   FailureReason = "title_language"
	ReasonNoDocumentURL   FailureReason = "no_document_url"
	ReasonAcquisition     FailureReason = "acquisition_failed"
	ReasonContentLanguage FailureReason = "content_language"
)

// ArticleError carries a failure tag so callers can branch on the reason
// instead of matching error strings.
type ArticleError struct {
	Reason FailureReason
	Err    error
}

func (e *ArticleError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *ArticleError) Unwrap() error { return e.Err }

// Skip builds an ArticleError without an underlying cause.
func Skip(reason FailureReason) *ArticleError {
	return &ArticleError{Reason: reason}
}

// SkipErr wraps a cause under a failure tag.
func SkipErr(reason FailureReason, err error) *ArticleError {
	return &ArticleError{Reason: reason, Err: err}
}

// LanguageScore is one entry of a ranked language identification result.
type LanguageScore struct {
	Code       string
	Confidence float64
}

// Outcome enumerates article dispositions recorded in the run ledger.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// LedgerEntry is one article disposition persisted for audit.
type LedgerEntry struct {
	RunID     string
	ArticleID string
	IssueURL  string
	Title     string
	Outcome   Outcome
	Reason    string
}

// HarvestStats aggregates counters across one run.
type HarvestStats struct {
	Issues    int
	Articles  int
	Processed int
	Skipped   int
	Failed    int
	StartedAt time.Time
}
