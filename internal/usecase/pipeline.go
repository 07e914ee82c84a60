package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"CorpusHarvester/internal/checkpoint"
	"CorpusHarvester/internal/corpus"
	"CorpusHarvester/internal/domain"
	"CorpusHarvester/internal/ports"
)

// Classifier gates articles by language, first on the listing title and
// again on the extracted text.
type Classifier interface {
	ShouldProcessTitle(title string) bool
	IsTargetLanguage(text string) bool
}

// Normalizer turns raw extracted text into corpus body text.
type Normalizer interface {
	Normalize(text string) string
}

// CheckpointStore persists harvest progress between runs.
type CheckpointStore interface {
	Save(state checkpoint.State) error
	Load() checkpoint.State
	WriteFinal(corpusText string) (string, error)
}

// PipelineConfig carries the run knobs the orchestrator needs.
type PipelineConfig struct {
	// Journal is the publication name stamped on every corpus record.
	Journal string
	// ResumeFrom restarts the issue walk at this issue URL. Empty means
	// resume from the checkpoint done-list alone.
	ResumeFrom string
	// IssueLimit and ArticleLimit cap the walk for trial runs. Zero
	// means unlimited. The article limit applies per issue.
	IssueLimit   int
	ArticleLimit int
	// SaveInterval is the number of processed articles between
	// checkpoints. Zero disables interval saves; issue boundaries still
	// checkpoint.
	SaveInterval int
	// DelayMin and DelayMax bound the politeness pause after each
	// processed article.
	DelayMin time.Duration
	DelayMax time.Duration
}

// PipelineDeps wires all driven adapters into the harvest pipeline.
// Ledger and Notifier may be nil; Classifier and Normalizer may be nil
// to disable their stage.
type PipelineDeps struct {
	Source      ports.IssueSource
	Acquirer    ports.DocumentAcquirer
	Extractor   ports.TextExtractor
	Classifier  Classifier
	Normalizer  Normalizer
	Checkpoints CheckpointStore
	Ledger      ports.RunLedger
	Notifier    ports.Notifier
}

// Pipeline walks the archive issue by issue and grows the corpus one
// article record at a time.
type Pipeline struct {
	source      ports.IssueSource
	acquirer    ports.DocumentAcquirer
	extractor   ports.TextExtractor
	classifier  Classifier
	normalizer  Normalizer
	checkpoints CheckpointStore
	ledger      ports.RunLedger
	notifier    ports.Notifier

	cfg    PipelineConfig
	logger *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(cfg PipelineConfig, deps PipelineDeps, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:      deps.Source,
		acquirer:    deps.Acquirer,
		extractor:   deps.Extractor,
		classifier:  deps.Classifier,
		normalizer:  deps.Normalizer,
		checkpoints: deps.Checkpoints,
		ledger:      deps.Ledger,
		notifier:    deps.Notifier,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run executes one full harvest. Articles fail individually without
// stopping the walk; only discovery and checkpoint writes are fatal.
// Progress is checkpointed every SaveInterval processed articles and at
// the end of every productive issue, and the corpus accumulated so far
// is flushed on cancellation and on panic, so a later run picks up
// where this one stopped.
func (p *Pipeline) Run(ctx context.Context) (runErr error) {
	if p.source == nil {
		return nil
	}

	stats := domain.HarvestStats{StartedAt: time.Now()}

	defer func() {
		if p.acquirer == nil {
			return
		}
		if err := p.acquirer.Close(); err != nil {
			p.logger.Warn("acquirer close failed", "error", err)
		}
	}()

	runID := p.beginRun(ctx, stats.StartedAt)

	state := p.checkpoints.Load()
	done := slices.Clone(state.ProcessedIssues)
	committed := int64(len(state.Corpus))
	currentIssue := state.CurrentIssue
	var out strings.Builder
	out.WriteString(state.Corpus)
	if len(done) > 0 || state.Corpus != "" {
		p.logger.Info("resuming from checkpoint",
			"issues_done", len(done),
			"corpus_bytes", committed)
	}

	// Loaded state is in scope from here on, so a best-effort save in
	// the recovery path can only add to it, never clobber it.
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("harvest panicked", "panic", r)
			p.saveBestEffort(currentIssue, done, out.String(), committed)
			runErr = fmt.Errorf("harvest aborted: %v", r)
		}
	}()

	issues, err := p.source.ListIssues(ctx)
	if err != nil {
		return fmt.Errorf("discover issues: %w", err)
	}
	pending := p.resumePlan(issues, done)
	if p.cfg.IssueLimit > 0 && len(pending) > p.cfg.IssueLimit {
		pending = pending[:p.cfg.IssueLimit]
	}
	p.logger.Info("harvest plan",
		"source", p.source.Name(),
		"discovered", len(issues),
		"pending", len(pending))

	for _, issueURL := range pending {
		if slices.Contains(done, issueURL) {
			continue
		}
		currentIssue = issueURL
		stats.Issues++

		refs, err := p.source.ListArticles(ctx, issueURL)
		if err != nil {
			p.logger.Warn("issue listing failed", "issue", issueURL, "error", err)
			continue
		}
		if p.cfg.ArticleLimit > 0 && len(refs) > p.cfg.ArticleLimit {
			refs = refs[:p.cfg.ArticleLimit]
		}
		p.logger.Info("harvesting issue", "issue", issueURL, "articles", len(refs))

		issueProcessed := 0
		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				p.saveBestEffort(issueURL, done, out.String(), committed)
				return err
			}
			stats.Articles++

			record, ref, err := p.processArticle(ctx, ref)
			if err != nil {
				outcome, reason := classifyOutcome(err)
				if outcome == domain.OutcomeFailed {
					stats.Failed++
					p.logger.Warn("article failed", "article", ref.ID, "reason", reason)
				} else {
					stats.Skipped++
					p.logger.Info("article skipped", "article", ref.ID, "reason", reason)
				}
				p.recordArticle(ctx, runID, issueURL, ref, outcome, reason)
				continue
			}

			out.WriteString(record)
			stats.Processed++
			issueProcessed++
			p.logger.Info("article processed", "article", ref.ID, "title", ref.Title)
			p.recordArticle(ctx, runID, issueURL, ref, domain.OutcomeProcessed, "")

			if p.cfg.SaveInterval > 0 && stats.Processed%p.cfg.SaveInterval == 0 {
				err := p.checkpoints.Save(checkpoint.State{
					CurrentIssue:    issueURL,
					ProcessedIssues: done,
					Corpus:          out.String(),
					CommittedBytes:  committed,
				})
				if err != nil {
					return fmt.Errorf("checkpoint: %w", err)
				}
			}

			if err := p.pause(ctx); err != nil {
				p.saveBestEffort(issueURL, done, out.String(), committed)
				return err
			}
		}

		if issueProcessed == 0 {
			p.logger.Info("issue yielded nothing", "issue", issueURL)
			continue
		}

		if !slices.Contains(done, issueURL) {
			done = append(done, issueURL)
		}
		committed = int64(out.Len())
		err = p.checkpoints.Save(checkpoint.State{
			CurrentIssue:    issueURL,
			ProcessedIssues: done,
			Corpus:          out.String(),
			CommittedBytes:  committed,
		})
		if err != nil {
			return fmt.Errorf("checkpoint after issue: %w", err)
		}
	}

	finalPath, err := p.checkpoints.WriteFinal(out.String())
	if err != nil {
		return fmt.Errorf("write corpus: %w", err)
	}
	p.logger.Info("harvest complete",
		"issues", stats.Issues,
		"articles", stats.Articles,
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"corpus", finalPath)

	if p.ledger != nil && runID != "" {
		if err := p.ledger.FinishRun(ctx, runID, stats, time.Now()); err != nil {
			p.logger.Warn("ledger finish failed", "error", err)
		}
	}
	if p.notifier != nil {
		if err := p.notifier.NotifyRunComplete(ctx, stats, finalPath); err != nil {
			p.logger.Warn("completion notice failed", "error", err)
		}
	}
	return nil
}

// processArticle runs one article through the stage chain and returns
// its corpus record along with the reference as enriched along the way.
func (p *Pipeline) processArticle(ctx context.Context, ref domain.ArticleReference) (string, domain.ArticleReference, error) {
	if p.classifier != nil && !p.classifier.ShouldProcessTitle(ref.Title) {
		return "", ref, domain.Skip(domain.ReasonTitleLanguage)
	}

	if ref.NeedsEnrichment() {
		ref = p.source.Enrich(ctx, ref)
	}

	doc, err := p.acquirer.Acquire(ctx, ref)
	if err != nil {
		return "", ref, err
	}

	text := p.extractor.Extract(ctx, doc)
	if p.classifier != nil && !p.classifier.IsTargetLanguage(text) {
		return "", ref, domain.Skip(domain.ReasonContentLanguage)
	}

	body := text
	if p.normalizer != nil {
		body = p.normalizer.Normalize(text)
	}

	meta := corpus.NewMetadata(p.cfg.Journal, ref)
	return corpus.Format(meta, body), ref, nil
}

// resumePlan narrows the discovered issue list to what this run should
// walk: an explicit resume point truncates the list from that issue, and
// issues already in the done-list drop out. Limits apply afterwards.
func (p *Pipeline) resumePlan(discovered []string, done []string) []string {
	if p.cfg.ResumeFrom != "" {
		if idx := slices.Index(discovered, p.cfg.ResumeFrom); idx >= 0 {
			discovered = discovered[idx:]
		} else {
			p.logger.Warn("resume issue not in archive, starting from the top",
				"issue", p.cfg.ResumeFrom)
		}
	}
	if len(done) == 0 {
		return discovered
	}

	finished := make(map[string]bool, len(done))
	for _, u := range done {
		finished[u] = true
	}
	pending := make([]string, 0, len(discovered))
	for _, u := range discovered {
		if !finished[u] {
			pending = append(pending, u)
		}
	}
	return pending
}

// pause sleeps a random interval inside the configured bounds so the
// walk does not hammer the journal host.
func (p *Pipeline) pause(ctx context.Context) error {
	delay := p.cfg.DelayMin
	if span := p.cfg.DelayMax - p.cfg.DelayMin; span > 0 {
		delay += time.Duration(rand.Int64N(int64(span)))
	}
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) beginRun(ctx context.Context, startedAt time.Time) string {
	if p.ledger == nil {
		return ""
	}
	runID, err := p.ledger.BeginRun(ctx, startedAt)
	if err != nil {
		p.logger.Warn("ledger begin failed", "error", err)
		return ""
	}
	return runID
}

func (p *Pipeline) recordArticle(ctx context.Context, runID, issueURL string, ref domain.ArticleReference, outcome domain.Outcome, reason string) {
	if p.ledger == nil || runID == "" {
		return
	}
	err := p.ledger.RecordArticle(ctx, domain.LedgerEntry{
		RunID:     runID,
		ArticleID: ref.ID,
		IssueURL:  issueURL,
		Title:     ref.Title,
		Outcome:   outcome,
		Reason:    reason,
	})
	if err != nil {
		p.logger.Warn("ledger entry failed", "article", ref.ID, "error", err)
	}
}

func (p *Pipeline) saveBestEffort(currentIssue string, done []string, corpusText string, committed int64) {
	err := p.checkpoints.Save(checkpoint.State{
		CurrentIssue:    currentIssue,
		ProcessedIssues: done,
		Corpus:          corpusText,
		CommittedBytes:  committed,
	})
	if err != nil {
		p.logger.Error("emergency checkpoint failed", "error", err)
	}
}

// classifyOutcome maps an article error to its ledger disposition.
// Language gates and missing documents are expected skips; everything
// else counts as a failure.
func classifyOutcome(err error) (domain.Outcome, string) {
	var artErr *domain.ArticleError
	if errors.As(err, &artErr) {
		if artErr.Reason == domain.ReasonAcquisition {
			return domain.OutcomeFailed, string(artErr.Reason)
		}
		return domain.OutcomeSkipped, string(artErr.Reason)
	}
	return domain.OutcomeFailed, err.Error()
}
