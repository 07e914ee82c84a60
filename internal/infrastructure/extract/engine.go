// Package extract pulls plain text out of downloaded PDFs. Scanned
// documents with no text layer go through an OCR fallback when the host
// has the tools for it.
package extract

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"CorpusHarvester/internal/domain"
	"CorpusHarvester/internal/ports"
)

// Engine never fails an article outright: extraction problems surface as
// an empty result and the article is judged further downstream.
type Engine struct {
	ocr    *OCR
	logger *slog.Logger
}

var _ ports.TextExtractor = (*Engine)(nil)

// NewEngine builds the extractor. ocr may be nil when the host lacks the
// OCR tool chain.
func NewEngine(ocr *OCR, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{ocr: ocr, logger: logger}
}

func (e *Engine) Extract(ctx context.Context, doc domain.AcquiredDocument) string {
	if doc.Path == "" {
		return ""
	}
	if _, err := os.Stat(doc.Path); err != nil {
		e.logger.Warn("document missing", "path", doc.Path, "error", err)
		return ""
	}

	text := e.native(doc.Path)
	if strings.TrimSpace(text) != "" {
		return text
	}

	if e.ocr == nil {
		e.logger.Warn("document has no text layer and OCR is unavailable", "path", doc.Path)
		return text
	}

	e.logger.Info("document has no text layer, running OCR", "path", doc.Path)
	ocrText, err := e.ocr.Run(ctx, doc.Path)
	if err != nil {
		e.logger.Warn("ocr failed", "path", doc.Path, "error", err)
		return text
	}
	if strings.TrimSpace(ocrText) == "" {
		e.logger.Warn("ocr produced no text", "path", doc.Path)
		return text
	}
	return ocrText
}

// native reads the embedded text layer page by page. The pdf library
// panics on some malformed files, so the whole pass is recoverable.
func (e *Engine) native(path string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("pdf reader panicked", "path", path, "panic", r)
			text = ""
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		e.logger.Warn("open pdf failed", "path", path, "error", err)
		return ""
	}
	defer file.Close()

	var b strings.Builder
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Debug("page extraction failed", "path", path, "page", i, "error", err)
			continue
		}
		if pageText != "" {
			b.WriteString(pageText)
			b.WriteString("\n")
		}
	}
	return b.String()
}
