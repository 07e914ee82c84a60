package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"CorpusHarvester/internal/app"
	"CorpusHarvester/internal/config"
	"CorpusHarvester/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	outputDir := flag.String("output", "", "output directory override")
	resumeFrom := flag.String("resume-from", "", "issue URL to restart the archive walk at")
	issueLimit := flag.Int("limit-issues", 0, "stop after this many issues, 0 means no limit")
	articleLimit := flag.Int("limit-articles", 0, "articles taken per issue, 0 means no limit")
	flag.Parse()

	// Optional .env for local runs; absence is not an error.
	_ = godotenv.Load()

	cfg := config.Load(*configPath)
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	logger := logging.New(cfg.Logging.Level)

	// Interrupts cancel the walk; the pipeline checkpoints before it
	// returns, so the next run resumes where this one stopped.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, app.Options{
		ResumeFrom:   *resumeFrom,
		IssueLimit:   *issueLimit,
		ArticleLimit: *articleLimit,
	}, logger)

	err := application.Run(ctx)
	if cerr := application.Close(); cerr != nil {
		logger.Warn("ledger close failed", "error", cerr)
	}
	if err != nil {
		logger.Error("harvest stopped", "error", err)
		os.Exit(1)
	}
}
