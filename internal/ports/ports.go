package ports

import (
	"context"
	"time"

	"CorpusHarvester/internal/domain"
)

// IssueSource discovers issues and the articles they contain.
type IssueSource interface {
	Name() string
	ListIssues(ctx context.Context) ([]string, error)
	ListArticles(ctx context.Context, issueURL string) ([]domain.ArticleReference, error)
	Enrich(ctx context.Context, ref domain.ArticleReference) domain.ArticleReference
}

// DocumentAcquirer obtains the PDF artifact for an article.
type DocumentAcquirer interface {
	Acquire(ctx context.Context, ref domain.ArticleReference) (domain.AcquiredDocument, error)
	Close() error
}

// TextExtractor pulls plain text out of an acquired document. It never
// fails; unusable documents yield an empty string.
type TextExtractor interface {
	Extract(ctx context.Context, doc domain.AcquiredDocument) string
}

// LanguageDetector identifies the language of a text fragment.
type LanguageDetector interface {
	Detect(text string) (code string, ok bool)
	Confidences(text string) []domain.LanguageScore
}

// RunLedger records per-run and per-article dispositions for audit.
type RunLedger interface {
	BeginRun(ctx context.Context, startedAt time.Time) (string, error)
	RecordArticle(ctx context.Context, entry domain.LedgerEntry) error
	FinishRun(ctx context.Context, runID string, stats domain.HarvestStats, finishedAt time.Time) error
	Close() error
}

// Notifier reports a finished run to an external channel.
type Notifier interface {
	NotifyRunComplete(ctx context.Context, stats domain.HarvestStats, outputPath string) error
}
