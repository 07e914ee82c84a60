package app

import (
	"context"
	"log/slog"
	"path/filepath"

	"CorpusHarvester/internal/checkpoint"
	"CorpusHarvester/internal/config"
	"CorpusHarvester/internal/discovery"
	"CorpusHarvester/internal/identity"
	"CorpusHarvester/internal/infrastructure/acquire"
	"CorpusHarvester/internal/infrastructure/detect"
	"CorpusHarvester/internal/infrastructure/extract"
	"CorpusHarvester/internal/infrastructure/feed"
	"CorpusHarvester/internal/infrastructure/ojs"
	"CorpusHarvester/internal/infrastructure/storage"
	"CorpusHarvester/internal/infrastructure/telegram"
	"CorpusHarvester/internal/infrastructure/web"
	"CorpusHarvester/internal/language"
	"CorpusHarvester/internal/logging"
	"CorpusHarvester/internal/ports"
	"CorpusHarvester/internal/textclean"
	"CorpusHarvester/internal/usecase"
)

// Options carries run-scoped knobs from the command line.
type Options struct {
	ResumeFrom   string
	IssueLimit   int
	ArticleLimit int
}

// Application wires configs to the harvest pipeline and its lifecycle.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	ledger   ports.RunLedger
	logger   *slog.Logger
}

// New builds a runnable application instance. Optional collaborators
// that fail to initialize are logged and left out; the harvest itself
// does not depend on them.
func New(cfg config.Config, opts Options, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	rotator := identity.NewRotator()
	client := web.NewClient(cfg.HTTP.Timeout(), rotator)

	archiveSource := ojs.NewSource(client,
		cfg.Source.BaseURL,
		cfg.Source.ArchivePath,
		cfg.Source.ArchivePages,
		baseLogger.With("component", "source.archive"))
	feedSource := feed.NewSource(client,
		cfg.Source.FeedURL,
		archiveSource,
		baseLogger.With("component", "source.feed"))

	registry := discovery.NewRegistry()
	registry.Register(archiveSource)
	registry.Register(feedSource)

	source, err := registry.Resolve(cfg.Source.Strategy)
	if err != nil {
		baseLogger.Warn("unknown discovery strategy, using the archive walker",
			"strategy", cfg.Source.Strategy)
		source = archiveSource
	}

	direct := acquire.NewDirectFetcher(client,
		cfg.Source.BaseURL,
		cfg.HTTP.MinDocumentBytes,
		cfg.HTTP.RetryAttempts,
		cfg.HTTP.RetryDelay(),
		baseLogger.With("component", "acquire.direct"))
	var browser acquire.Fetcher
	if cfg.Browser.Enabled {
		browser = acquire.NewBrowserFetcher(client,
			cfg.HTTP.MinDocumentBytes,
			cfg.Browser.Wait(),
			baseLogger.With("component", "acquire.browser"))
	}
	acquirer := acquire.NewEngine(
		filepath.Join(cfg.Output.Dir, "documents"),
		cfg.HTTP.MinDocumentBytes,
		direct,
		browser,
		baseLogger.With("component", "acquire"))

	ocr := extract.DetectOCR(cfg.Extraction.OCRDPI,
		cfg.Extraction.OCRLanguages,
		baseLogger.With("component", "ocr"))
	extractor := extract.NewEngine(ocr, baseLogger.With("component", "extract"))

	classifier := language.NewClassifier(detect.NewLingua(),
		baseLogger.With("component", "language"))
	normalizer := textclean.New(true)
	checkpoints := checkpoint.NewStore(cfg.Output.Dir,
		baseLogger.With("component", "checkpoint"))

	var ledger ports.RunLedger
	if cfg.Ledger.Path != "" {
		l, err := storage.OpenLedger(context.Background(),
			cfg.Ledger.Path,
			baseLogger.With("component", "ledger"))
		if err != nil {
			baseLogger.Warn("run ledger unavailable", "error", err)
		} else {
			ledger = l
		}
	}

	var notifier ports.Notifier
	tg := cfg.Notifications.Telegram
	if tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineConfig{
		Journal:      cfg.Source.Journal,
		ResumeFrom:   opts.ResumeFrom,
		IssueLimit:   opts.IssueLimit,
		ArticleLimit: opts.ArticleLimit,
		SaveInterval: cfg.Output.SaveInterval,
		DelayMin:     cfg.HTTP.DelayMin(),
		DelayMax:     cfg.HTTP.DelayMax(),
	}, usecase.PipelineDeps{
		Source:      source,
		Acquirer:    acquirer,
		Extractor:   extractor,
		Classifier:  classifier,
		Normalizer:  normalizer,
		Checkpoints: checkpoints,
		Ledger:      ledger,
		Notifier:    notifier,
	}, baseLogger.With("component", "pipeline"))

	return &Application{cfg: cfg, pipeline: pipeline, ledger: ledger, logger: baseLogger}
}

// Run performs a single harvest execution.
func (a *Application) Run(ctx context.Context) error {
	if a.pipeline == nil {
		return nil
	}
	return a.pipeline.Run(ctx)
}

// Close releases long-lived resources. The pipeline closes the browser
// session itself; only the ledger handle remains.
func (a *Application) Close() error {
	if a.ledger == nil {
		return nil
	}
	return a.ledger.Close()
}
