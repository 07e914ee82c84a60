package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"CorpusHarvester/internal/checkpoint"
	"CorpusHarvester/internal/corpus"
	"CorpusHarvester/internal/domain"
)

type fakeSource struct {
	issues   []string
	articles map[string][]domain.ArticleReference
	listErr  map[string]error
	listed   []string
	enriched []string
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) ListIssues(ctx context.Context) ([]string, error) {
	return s.issues, nil
}

func (s *fakeSource) ListArticles(ctx context.Context, issueURL string) ([]domain.ArticleReference, error) {
	s.listed = append(s.listed, issueURL)
	if err := s.listErr[issueURL]; err != nil {
		return nil, err
	}
	return s.articles[issueURL], nil
}

func (s *fakeSource) Enrich(ctx context.Context, ref domain.ArticleReference) domain.ArticleReference {
	s.enriched = append(s.enriched, ref.ID)
	if ref.Title == "" {
		ref.Title = "Enriched " + ref.ID
	}
	if ref.GalleyURL == "" {
		ref.GalleyURL = "https://journal.example/article/view/" + ref.ID + "/pdf"
	}
	return ref
}

type fakeAcquirer struct {
	fail   map[string]error
	calls  []string
	closed bool
}

func (a *fakeAcquirer) Acquire(ctx context.Context, ref domain.ArticleReference) (domain.AcquiredDocument, error) {
	a.calls = append(a.calls, ref.ID)
	if err := a.fail[ref.ID]; err != nil {
		return domain.AcquiredDocument{}, err
	}
	return domain.AcquiredDocument{
		ArticleID: ref.ID,
		Path:      "/cache/article_" + ref.ID + ".pdf",
		Size:      2048,
		Source:    domain.SourceDirect,
	}, nil
}

func (a *fakeAcquirer) Close() error {
	a.closed = true
	return nil
}

type fakeExtractor struct {
	texts map[string]string
	hook  func(articleID string)
}

func (e *fakeExtractor) Extract(ctx context.Context, doc domain.AcquiredDocument) string {
	if e.hook != nil {
		e.hook(doc.ArticleID)
	}
	if text, ok := e.texts[doc.ArticleID]; ok {
		return text
	}
	return "Tekst na bosanskom jeziku koji prolazi provjeru."
}

type fakeClassifier struct {
	titleOK   func(title string) bool
	contentOK func(text string) bool
}

func (c *fakeClassifier) ShouldProcessTitle(title string) bool {
	if c.titleOK == nil {
		return true
	}
	return c.titleOK(title)
}

func (c *fakeClassifier) IsTargetLanguage(text string) bool {
	if c.contentOK == nil {
		return true
	}
	return c.contentOK(text)
}

type memCheckpoints struct {
	state checkpoint.State
	saves []checkpoint.State
	final string
}

func (m *memCheckpoints) Save(state checkpoint.State) error {
	m.saves = append(m.saves, state)
	m.state = state
	return nil
}

func (m *memCheckpoints) Load() checkpoint.State { return m.state }

func (m *memCheckpoints) WriteFinal(corpusText string) (string, error) {
	m.final = corpusText
	return "/out/corpus.txt", nil
}

type memLedger struct {
	entries  []domain.LedgerEntry
	finished *domain.HarvestStats
}

func (l *memLedger) BeginRun(ctx context.Context, startedAt time.Time) (string, error) {
	return "run-1", nil
}

func (l *memLedger) RecordArticle(ctx context.Context, entry domain.LedgerEntry) error {
	l.entries = append(l.entries, entry)
	return nil
}

func (l *memLedger) FinishRun(ctx context.Context, runID string, stats domain.HarvestStats, finishedAt time.Time) error {
	s := stats
	l.finished = &s
	return nil
}

func (l *memLedger) Close() error { return nil }

type memNotifier struct {
	stats domain.HarvestStats
	path  string
	calls int
}

func (n *memNotifier) NotifyRunComplete(ctx context.Context, stats domain.HarvestStats, outputPath string) error {
	n.calls++
	n.stats = stats
	n.path = outputPath
	return nil
}

func testRefs(ids ...string) []domain.ArticleReference {
	refs := make([]domain.ArticleReference, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, domain.ArticleReference{
			ID:         id,
			Section:    "Studije",
			Year:       "2006",
			Title:      "Naslov " + id,
			Authors:    "A. Autor",
			Pages:      "10-20",
			LandingURL: "https://journal.example/article/view/" + id,
			GalleyURL:  "https://journal.example/article/view/" + id + "/pdf",
		})
	}
	return refs
}

func TestRunHarvestsArchive(t *testing.T) {
	t.Parallel()

	issueA := "https://journal.example/issue/view/1"
	issueB := "https://journal.example/issue/view/2"
	source := &fakeSource{
		issues: []string{issueA, issueB},
		articles: map[string][]domain.ArticleReference{
			issueA: testRefs("a1", "a2"),
			issueB: testRefs("b1", "b2"),
		},
	}
	acq := &fakeAcquirer{}
	store := &memCheckpoints{}
	ledger := &memLedger{}
	notifier := &memNotifier{}

	p := NewPipeline(PipelineConfig{Journal: "Prilozi"}, PipelineDeps{
		Source:      source,
		Acquirer:    acq,
		Extractor:   &fakeExtractor{},
		Classifier:  &fakeClassifier{},
		Checkpoints: store,
		Ledger:      ledger,
		Notifier:    notifier,
	}, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := strings.Count(store.final, corpus.Sentinel); got != 4 {
		t.Fatalf("expected 4 records in final corpus, got %d", got)
	}
	for _, want := range []string{"Naslov a1", "Naslov a2", "Naslov b1", "Naslov b2"} {
		if !strings.Contains(store.final, want) {
			t.Fatalf("final corpus missing %q", want)
		}
	}
	if strings.Index(store.final, "Naslov a2") > strings.Index(store.final, "Naslov b1") {
		t.Fatalf("records out of archive order")
	}

	if len(store.saves) != 2 {
		t.Fatalf("expected one checkpoint per issue, got %d", len(store.saves))
	}
	last := store.saves[len(store.saves)-1]
	if len(last.ProcessedIssues) != 2 || last.ProcessedIssues[1] != issueB {
		t.Fatalf("unexpected done-list: %v", last.ProcessedIssues)
	}
	if last.CommittedBytes != int64(len(last.Corpus)) {
		t.Fatalf("issue boundary save should commit the whole corpus")
	}

	if ledger.finished == nil {
		t.Fatal("ledger run was not finished")
	}
	if ledger.finished.Processed != 4 || ledger.finished.Issues != 2 || ledger.finished.Articles != 4 {
		t.Fatalf("unexpected stats: %+v", ledger.finished)
	}
	if len(ledger.entries) != 4 {
		t.Fatalf("expected 4 ledger entries, got %d", len(ledger.entries))
	}

	if notifier.calls != 1 || notifier.path != "/out/corpus.txt" {
		t.Fatalf("notifier not called with corpus path: %+v", notifier)
	}
	if !acq.closed {
		t.Fatal("acquirer was not closed")
	}
}

func TestRunTitleGateSkipsBeforeAcquisition(t *testing.T) {
	t.Parallel()

	issue := "https://journal.example/issue/view/1"
	source := &fakeSource{
		issues:   []string{issue},
		articles: map[string][]domain.ArticleReference{issue: testRefs("a1", "a2")},
	}
	acq := &fakeAcquirer{}
	ledger := &memLedger{}

	p := NewPipeline(PipelineConfig{Journal: "Prilozi"}, PipelineDeps{
		Source:    source,
		Acquirer:  acq,
		Extractor: &fakeExtractor{},
		Classifier: &fakeClassifier{
			titleOK: func(title string) bool { return title != "Naslov a1" },
		},
		Checkpoints: &memCheckpoints{},
		Ledger:      ledger,
	}, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	for _, id := range acq.calls {
		if id == "a1" {
			t.Fatal("rejected title should not reach acquisition")
		}
	}
	if ledger.finished.Skipped != 1 || ledger.finished.Processed != 1 {
		t.Fatalf("unexpected stats: %+v", ledger.finished)
	}
	if ledger.entries[0].Outcome != domain.OutcomeSkipped || ledger.entries[0].Reason != "title_language" {
		t.Fatalf("unexpected ledger entry: %+v", ledger.entries[0])
	}
}

func TestRunContentGateSkips(t *testing.T) {
	t.Parallel()

	issue := "https://journal.example/issue/view/1"
	source := &fakeSource{
		issues:   []string{issue},
		articles: map[string][]domain.ArticleReference{issue: testRefs("a1", "a2")},
	}
	ledger := &memLedger{}
	store := &memCheckpoints{}

	p := NewPipeline(PipelineConfig{Journal: "Prilozi"}, PipelineDeps{
		Source:    source,
		Acquirer:  &fakeAcquirer{},
		Extractor: &fakeExtractor{texts: map[string]string{"a2": "plain english body text"}},
		Classifier: &fakeClassifier{
			contentOK: func(text string) bool { return !strings.Contains(text, "english") },
		},
		Checkpoints: store,
		Ledger:      ledger,
	}, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if strings.Contains(store.final, "Naslov a2") {
		t.Fatal("foreign-language article leaked into the corpus")
	}
	if ledger.finished.Skipped != 1 {
		t.Fatalf("unexpected stats: %+v", ledger.finished)
	}
	var found bool
	for _, e := range ledger.entries {
		if e.ArticleID == "a2" && e.Reason == "content_language" {
			found = true
		}
	}
	if !found {
		t.Fatal("content gate skip not recorded")
	}
}

func TestRunAcquisitionFailureCountsFailed(t *testing.T) {
	t.Parallel()

	issue := "https://journal.example/issue/view/1"
	source := &fakeSource{
		issues:   []string{issue},
		articles: map[string][]domain.ArticleReference{issue: testRefs("a1", "a2")},
	}
	acq := &fakeAcquirer{
		fail: map[string]error{
			"a1": domain.SkipErr(domain.ReasonAcquisition, errors.New("all strategies exhausted")),
		},
	}
	ledger := &memLedger{}
	store := &memCheckpoints{}

	p := NewPipeline(PipelineConfig{Journal: "Prilozi"}, PipelineDeps{
		Source:      source,
		Acquirer:    acq,
		Extractor:   &fakeExtractor{},
		Classifier:  &fakeClassifier{},
		Checkpoints: store,
		Ledger:      ledger,
	}, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("a single lost article must not fail the run: %v", err)
	}

	if ledger.finished.Failed != 1 || ledger.finished.Processed != 1 {
		t.Fatalf("unexpected stats: %+v", ledger.finished)
	}
	if !strings.Contains(store.final, "Naslov a2") {
		t.Fatal("surviving article missing from corpus")
	}
	if ledger.entries[0].Outcome != domain.OutcomeFailed || ledger.entries[0].Reason != "acquisition_failed" {
		t.Fatalf("unexpected ledger entry: %+v", ledger.entries[0])
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	t.Parallel()

	issueA := "https://journal.example/issue/view/1"
	issueB := "https://journal.example/issue/view/2"
	source := &fakeSource{
		issues: []string{issueA, issueB},
		articles: map[string][]domain.ArticleReference{
			issueA: testRefs("a1"),
			issueB: testRefs("b1"),
		},
	}
	prefix := corpus.Sentinel + "\nNOVINA: Prilozi\nrecord from the first run\n\n"
	store := &memCheckpoints{state: checkpoint.State{
		CurrentIssue:    issueA,
		ProcessedIssues: []string{issueA},
		Corpus:          prefix,
		CommittedBytes:  int64(len(prefix)),
	}}

	p := NewPipeline(PipelineConfig{Journal: "Prilozi"}, PipelineDeps{
		Source:      source,
		Acquirer:    &fakeAcquirer{},
		Extractor:   &fakeExtractor{},
		Classifier:  &fakeClassifier{},
		Checkpoints: store,
	}, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(source.listed) != 1 || source.listed[0] != issueB {
		t.Fatalf("finished issue was walked again: %v", source.listed)
	}
	if !strings.HasPrefix(store.final, prefix) {
		t.Fatal("resumed run dropped the checkpointed corpus")
	}
	if !strings.Contains(store.final, "Naslov b1") {
		t.Fatal("resumed run did not harvest the pending issue")
	}
}

func TestRunResumeFromFlag(t *testing.T) {
	t.Parallel()

	issueA := "https://journal.example/issue/view/1"
	issueB := "https://journal.example/issue/view/2"
	source := &fakeSource{
		issues: []string{issueA, issueB},
		articles: map[string][]domain.ArticleReference{
			issueA: testRefs("a1"),
			issueB: testRefs("b1"),
		},
	}

	p := NewPipeline(PipelineConfig{Journal: "Prilozi", ResumeFrom: issueB}, PipelineDeps{
		Source:      source,
		Acquirer:    &fakeAcquirer{},
		Extractor:   &fakeExtractor{},
		Classifier:  &fakeClassifier{},
		Checkpoints: &memCheckpoints{},
	}, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(source.listed) != 1 || source.listed[0] != issueB {
		t.Fatalf("expected walk to start at the resume issue, got %v", source.listed)
	}
}

func TestRunHonorsLimits(t *testing.T) {
	t.Parallel()

	issueA := "https://journal.example/issue/view/1"
	issueB := "https://journal.example/issue/view/2"
	source := &fakeSource{
		issues: []string{issueA, issueB},
		articles: map[string][]domain.ArticleReference{
			issueA: testRefs("a1", "a2", "a3"),
			issueB: testRefs("b1"),
		},
	}
	ledger := &memLedger{}

	p := NewPipeline(PipelineConfig{Journal: "Prilozi", IssueLimit: 1, ArticleLimit: 2}, PipelineDeps{
		Source:      source,
		Acquirer:    &fakeAcquirer{},
		Extractor:   &fakeExtractor{},
		Classifier:  &fakeClassifier{},
		Checkpoints: &memCheckpoints{},
		Ledger:      ledger,
	}, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(source.listed) != 1 || source.listed[0] != issueA {
		t.Fatalf("issue limit not honored: %v", source.listed)
	}
	if ledger.finished.Articles != 2 || ledger.finished.Processed != 2 {
		t.Fatalf("article limit not honored: %+v", ledger.finished)
	}
}

func TestRunUnproductiveIssueStaysPending(t *testing.T) {
	t.Parallel()

	issueA := "https://journal.example/issue/view/1"
	issueB := "https://journal.example/issue/view/2"
	source := &fakeSource{
		issues: []string{issueA, issueB},
		articles: map[string][]domain.ArticleReference{
			issueA: testRefs("a1"),
			issueB: testRefs("b1"),
		},
	}
	store := &memCheckpoints{}

	p := NewPipeline(PipelineConfig{Journal: "Prilozi"}, PipelineDeps{
		Source:    source,
		Acquirer:  &fakeAcquirer{},
		Extractor: &fakeExtractor{},
		Classifier: &fakeClassifier{
			titleOK: func(title string) bool { return title != "Naslov a1" },
		},
		Checkpoints: store,
	}, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	// Every article of the first issue was skipped, so it earns no
	// done-list entry and a later run will look at it again.
	if len(store.saves) != 1 {
		t.Fatalf("expected a single issue-end checkpoint, got %d", len(store.saves))
	}
	if got := store.saves[0].ProcessedIssues; len(got) != 1 || got[0] != issueB {
		t.Fatalf("unexpected done-list: %v", got)
	}
}

func TestRunIntervalSavesKeepIssueBoundary(t *testing.T) {
	t.Parallel()

	issue := "https://journal.example/issue/view/1"
	source := &fakeSource{
		issues:   []string{issue},
		articles: map[string][]domain.ArticleReference{issue: testRefs("a1", "a2", "a3")},
	}
	store := &memCheckpoints{}

	p := NewPipeline(PipelineConfig{Journal: "Prilozi", SaveInterval: 1}, PipelineDeps{
		Source:      source,
		Acquirer:    &fakeAcquirer{},
		Extractor:   &fakeExtractor{},
		Classifier:  &fakeClassifier{},
		Checkpoints: store,
	}, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	// Three interval saves plus the issue-end save.
	if len(store.saves) != 4 {
		t.Fatalf("expected 4 checkpoints, got %d", len(store.saves))
	}
	for _, save := range store.saves[:3] {
		if save.CommittedBytes != 0 {
			t.Fatalf("mid-issue save must not advance the committed boundary, got %d", save.CommittedBytes)
		}
		if save.CurrentIssue != issue {
			t.Fatalf("unexpected in-flight issue: %s", save.CurrentIssue)
		}
		if len(save.ProcessedIssues) != 0 {
			t.Fatalf("in-flight issue leaked into the done-list: %v", save.ProcessedIssues)
		}
	}
	last := store.saves[3]
	if last.CommittedBytes != int64(len(store.final)) {
		t.Fatalf("issue-end save should commit the full corpus")
	}
}

func TestRunEnrichesIncompleteRefs(t *testing.T) {
	t.Parallel()

	issue := "https://journal.example/issue/view/1"
	bare := domain.ArticleReference{
		ID:         "a1",
		LandingURL: "https://journal.example/article/view/a1",
	}
	source := &fakeSource{
		issues:   []string{issue},
		articles: map[string][]domain.ArticleReference{issue: append([]domain.ArticleReference{bare}, testRefs("a2")...)},
	}
	store := &memCheckpoints{}

	p := NewPipeline(PipelineConfig{Journal: "Prilozi"}, PipelineDeps{
		Source:      source,
		Acquirer:    &fakeAcquirer{},
		Extractor:   &fakeExtractor{},
		Classifier:  &fakeClassifier{},
		Checkpoints: store,
	}, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(source.enriched) != 1 || source.enriched[0] != "a1" {
		t.Fatalf("expected only the bare ref to be enriched, got %v", source.enriched)
	}
	if !strings.Contains(store.final, "NASLOV: Enriched a1") {
		t.Fatal("enriched title missing from record header")
	}
}

func TestRunNormalizesBodyText(t *testing.T) {
	t.Parallel()

	issue := "https://journal.example/issue/view/1"
	source := &fakeSource{
		issues:   []string{issue},
		articles: map[string][]domain.ArticleReference{issue: testRefs("a1")},
	}
	store := &memCheckpoints{}

	p := NewPipeline(PipelineConfig{Journal: "Prilozi"}, PipelineDeps{
		Source:      source,
		Acquirer:    &fakeAcquirer{},
		Extractor:   &fakeExtractor{texts: map[string]string{"a1": "raw body"}},
		Classifier:  &fakeClassifier{},
		Normalizer:  upperNormalizer{},
		Checkpoints: store,
	}, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if !strings.Contains(store.final, "RAW BODY") {
		t.Fatal("normalizer output missing from record body")
	}
}

type upperNormalizer struct{}

func (upperNormalizer) Normalize(text string) string { return strings.ToUpper(text) }

func TestRunCancellationSavesProgress(t *testing.T) {
	t.Parallel()

	issue := "https://journal.example/issue/view/1"
	source := &fakeSource{
		issues:   []string{issue},
		articles: map[string][]domain.ArticleReference{issue: testRefs("a1", "a2")},
	}
	store := &memCheckpoints{}
	acq := &fakeAcquirer{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPipeline(PipelineConfig{Journal: "Prilozi"}, PipelineDeps{
		Source:   source,
		Acquirer: acq,
		Extractor: &fakeExtractor{hook: func(articleID string) {
			if articleID == "a1" {
				cancel()
			}
		}},
		Classifier:  &fakeClassifier{},
		Checkpoints: store,
	}, nil)

	err := p.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if len(store.saves) != 1 {
		t.Fatalf("expected one emergency checkpoint, got %d", len(store.saves))
	}
	save := store.saves[0]
	if !strings.Contains(save.Corpus, "Naslov a1") {
		t.Fatal("processed record missing from emergency checkpoint")
	}
	if save.CommittedBytes != 0 || len(save.ProcessedIssues) != 0 {
		t.Fatalf("interrupted issue must stay pending: %+v", save)
	}
	if store.final != "" {
		t.Fatal("cancelled run must not write a final corpus")
	}
	if !acq.closed {
		t.Fatal("acquirer left open after cancellation")
	}
}

func TestRunBrokenIssueListingContinues(t *testing.T) {
	t.Parallel()

	issueA := "https://journal.example/issue/view/1"
	issueB := "https://journal.example/issue/view/2"
	source := &fakeSource{
		issues:   []string{issueA, issueB},
		listErr:  map[string]error{issueA: errors.New("status 500")},
		articles: map[string][]domain.ArticleReference{issueB: testRefs("b1")},
	}
	store := &memCheckpoints{}
	ledger := &memLedger{}

	p := NewPipeline(PipelineConfig{Journal: "Prilozi"}, PipelineDeps{
		Source:      source,
		Acquirer:    &fakeAcquirer{},
		Extractor:   &fakeExtractor{},
		Classifier:  &fakeClassifier{},
		Checkpoints: store,
		Ledger:      ledger,
	}, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if !strings.Contains(store.final, "Naslov b1") {
		t.Fatal("healthy issue was not harvested")
	}
	if ledger.finished.Issues != 2 || ledger.finished.Processed != 1 {
		t.Fatalf("unexpected stats: %+v", ledger.finished)
	}
}

func TestRunDuplicateIssueWalkedOnce(t *testing.T) {
	t.Parallel()

	issue := "https://journal.example/issue/view/1"
	source := &fakeSource{
		issues:   []string{issue, issue},
		articles: map[string][]domain.ArticleReference{issue: testRefs("a1")},
	}
	store := &memCheckpoints{}

	p := NewPipeline(PipelineConfig{Journal: "Prilozi"}, PipelineDeps{
		Source:      source,
		Acquirer:    &fakeAcquirer{},
		Extractor:   &fakeExtractor{},
		Classifier:  &fakeClassifier{},
		Checkpoints: store,
	}, nil)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(source.listed) != 1 {
		t.Fatalf("duplicate issue listed twice: %v", source.listed)
	}
	if got := strings.Count(store.final, corpus.Sentinel); got != 1 {
		t.Fatalf("expected 1 record, got %d", got)
	}
}

func TestRunWithoutSourceIsNoop(t *testing.T) {
	t.Parallel()

	p := NewPipeline(PipelineConfig{}, PipelineDeps{}, nil)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
}
