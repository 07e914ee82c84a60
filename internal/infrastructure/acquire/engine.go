// Package acquire obtains article PDFs. Strategies are tried in a fixed
// order: the on-disk cache, a plain HTTP fetch of the galley page, and
// finally a headless browser session for pages that assemble the document
// link with JavaScript.
package acquire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"CorpusHarvester/internal/domain"
	"CorpusHarvester/internal/ports"
)

// Fetcher downloads the document behind a galley page into dest.
type Fetcher interface {
	Fetch(ctx context.Context, ref domain.ArticleReference, dest string) error
}

// Engine coordinates the acquisition strategies for one article.
type Engine struct {
	dir     string
	minSize int64
	direct  Fetcher
	browser Fetcher
	logger  *slog.Logger
}

var _ ports.DocumentAcquirer = (*Engine)(nil)

// NewEngine wires the strategy chain. browser may be nil when no browser
// is available on the host.
func NewEngine(dir string, minSize int64, direct, browser Fetcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		dir:     dir,
		minSize: minSize,
		direct:  direct,
		browser: browser,
		logger:  logger,
	}
}

func (e *Engine) Acquire(ctx context.Context, ref domain.ArticleReference) (domain.AcquiredDocument, error) {
	path := filepath.Join(e.dir, "article_"+ref.ID+".pdf")

	if info, err := os.Stat(path); err == nil && info.Size() > e.minSize {
		e.logger.Info("document already on disk", "article", ref.ID, "size", info.Size())
		return domain.AcquiredDocument{
			ArticleID: ref.ID,
			Path:      path,
			Size:      info.Size(),
			Source:    domain.SourceCache,
		}, nil
	}

	if ref.GalleyURL == "" {
		return domain.AcquiredDocument{}, domain.Skip(domain.ReasonNoDocumentURL)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return domain.AcquiredDocument{}, fmt.Errorf("create document dir: %w", err)
	}

	lastErr := e.direct.Fetch(ctx, ref, path)
	if lastErr == nil {
		return e.acquired(ref.ID, path, domain.SourceDirect)
	}
	e.logger.Warn("direct download failed", "article", ref.ID, "error", lastErr)

	if e.browser != nil {
		if err := e.browser.Fetch(ctx, ref, path); err == nil {
			return e.acquired(ref.ID, path, domain.SourceBrowser)
		} else {
			lastErr = err
			e.logger.Warn("browser download failed", "article", ref.ID, "error", err)
		}
	}

	return domain.AcquiredDocument{}, domain.SkipErr(domain.ReasonAcquisition, lastErr)
}

func (e *Engine) acquired(id, path string, source domain.AcquisitionSource) (domain.AcquiredDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.AcquiredDocument{}, domain.SkipErr(domain.ReasonAcquisition, err)
	}
	return domain.AcquiredDocument{ArticleID: id, Path: path, Size: info.Size(), Source: source}, nil
}

// Close shuts down strategies that hold external resources.
func (e *Engine) Close() error {
	if c, ok := e.browser.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
