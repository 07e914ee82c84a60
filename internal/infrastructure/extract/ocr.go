package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

var pageNumExpr = regexp.MustCompile(`(\d+)\.png$`)

// OCR shells out to poppler's pdftoppm to rasterize pages and to
// tesseract to read them.
type OCR struct {
	rasterizer string
	tesseract  string
	dpi        int
	languages  string
	logger     *slog.Logger
}

// DetectOCR probes the host for the OCR tool chain and returns nil when
// either tool is missing.
func DetectOCR(dpi int, languages string, logger *slog.Logger) *OCR {
	if logger == nil {
		logger = slog.Default()
	}

	rasterizer, err := exec.LookPath("pdftoppm")
	if err != nil {
		logger.Info("pdftoppm not found, OCR disabled")
		return nil
	}
	tesseract, err := exec.LookPath("tesseract")
	if err != nil {
		logger.Info("tesseract not found, OCR disabled")
		return nil
	}

	logger.Info("ocr tool chain available", "rasterizer", rasterizer, "tesseract", tesseract, "languages", languages)
	return &OCR{
		rasterizer: rasterizer,
		tesseract:  tesseract,
		dpi:        dpi,
		languages:  languages,
		logger:     logger,
	}
}

// Run rasterizes every page into a temp directory and reads them in page
// order. Pages tesseract chokes on are skipped.
func (o *OCR) Run(ctx context.Context, pdfPath string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "harvester-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, o.rasterizer, "-png", "-r", strconv.Itoa(o.dpi), pdfPath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("rasterize %s: %w: %s", filepath.Base(pdfPath), err, bytes.TrimSpace(out))
	}

	pages, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(pages) == 0 {
		return "", errors.New("no page images produced")
	}
	sortPages(pages)

	var b bytes.Buffer
	for i, image := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		read := exec.CommandContext(ctx, o.tesseract, image, "stdout", "-l", o.languages, "--psm", "3")
		var out bytes.Buffer
		read.Stdout = &out
		if err := read.Run(); err != nil {
			o.logger.Warn("tesseract failed on page", "page", i+1, "error", err)
			continue
		}
		b.Write(out.Bytes())
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

// sortPages orders rasterized pages by their embedded page number, since
// rasterizers differ in how they zero-pad file names.
func sortPages(files []string) {
	num := func(path string) int {
		m := pageNumExpr.FindStringSubmatch(filepath.Base(path))
		if len(m) < 2 {
			return 0
		}
		n, _ := strconv.Atoi(m[1])
		return n
	}
	sort.Slice(files, func(i, j int) bool { return num(files[i]) < num(files[j]) })
}
