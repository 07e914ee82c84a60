package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html/charset"

	"CorpusHarvester/internal/domain"
	"CorpusHarvester/internal/infrastructure/web"
)

const pdfMagic = "%PDF-"

// DirectFetcher resolves the real document link from the galley viewer
// page and downloads it over plain HTTP.
type DirectFetcher struct {
	client    *web.Client
	baseURL   string
	minSize   int64
	attempts  int
	retryBase time.Duration
	logger    *slog.Logger
}

func NewDirectFetcher(client *web.Client, baseURL string, minSize int64, attempts int, retryBase time.Duration, logger *slog.Logger) *DirectFetcher {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectFetcher{
		client:    client,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		minSize:   minSize,
		attempts:  attempts,
		retryBase: retryBase,
		logger:    logger,
	}
}

func (f *DirectFetcher) Fetch(ctx context.Context, ref domain.ArticleReference, dest string) error {
	doc, err := f.galleyPage(ctx, ref.GalleyURL)
	if err != nil {
		return err
	}

	link := findDocumentLink(doc)
	if link == "" {
		return errors.New("no document link on galley page")
	}
	link = f.resolveLink(link, ref.GalleyURL)

	f.logger.Debug("document link resolved", "article", ref.ID, "url", link)
	return f.download(ctx, link, dest)
}

func (f *DirectFetcher) galleyPage(ctx context.Context, galleyURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, galleyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build galley request: %w", err)
	}
	f.client.Rotate().ApplyDocument(req.Header, f.baseURL)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch galley page %s: %w", galleyURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch galley page %s: unexpected status %d", galleyURL, resp.StatusCode)
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode galley page %s: %w", galleyURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse galley page %s: %w", galleyURL, err)
	}
	return doc, nil
}

// findDocumentLink prefers the viewer iframe and falls back to the first
// download anchor that points at a PDF.
func findDocumentLink(doc *goquery.Document) string {
	if src, ok := doc.Find("iframe#pdf").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		return strings.TrimSpace(src)
	}

	var link string
	doc.Find("a.download").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		href, ok := anchor.Attr("href")
		if ok && strings.Contains(strings.ToLower(href), ".pdf") {
			link = href
			return false
		}
		return true
	})
	return link
}

// resolveLink absolutizes a document link the same way the journal's own
// pages reference it: site-absolute paths hang off the base URL, anything
// else off the galley page's directory.
func (f *DirectFetcher) resolveLink(link, galleyURL string) string {
	switch {
	case strings.HasPrefix(link, "/"):
		return f.baseURL + link
	case !strings.HasPrefix(link, "http"):
		base := ""
		if i := strings.LastIndex(galleyURL, "/"); i >= 0 {
			base = galleyURL[:i]
		}
		return base + "/" + link
	default:
		return link
	}
}

// download fetches the document with retries, rotating the client identity
// before every attempt, and commits it to dest only after validation.
func (f *DirectFetcher) download(ctx context.Context, link, dest string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.retryBase
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	var resp *http.Response
	attempt := 0
	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build document request: %w", err))
		}
		f.client.Rotate().ApplyDocument(req.Header, f.baseURL)

		r, err := f.client.Do(req)
		if err != nil {
			f.logger.Warn("document request failed", "url", link, "attempt", attempt, "error", err)
			return err
		}
		if r.StatusCode != http.StatusOK {
			r.Body.Close()
			err := fmt.Errorf("unexpected status %d", r.StatusCode)
			f.logger.Warn("document request failed", "url", link, "attempt", attempt, "error", err)
			return err
		}
		resp = r
		return nil
	}

	retries := backoff.WithMaxRetries(policy, uint64(f.attempts-1))
	if err := backoff.Retry(operation, backoff.WithContext(retries, ctx)); err != nil {
		return fmt.Errorf("download %s: %w", link, err)
	}
	defer resp.Body.Close()

	return commitDocument(resp.Body, dest, f.minSize, f.logger)
}

// commitDocument streams the body to a temp file next to dest and renames
// it in once the content passes the size or magic-number check. A failed
// download never lands at dest, so later cache probes cannot pick it up.
func commitDocument(body io.Reader, dest string, minSize int64, logger *slog.Logger) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	size, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("stream document: %w", err)
	}

	if size < minSize {
		header := make([]byte, len(pdfMagic))
		if _, err := tmp.ReadAt(header, 0); err != nil || string(header) != pdfMagic {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("downloaded file is %d bytes and not a PDF", size)
		}
		logger.Warn("downloaded document is suspiciously small", "path", dest, "size", size)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(dest), err)
	}
	return nil
}
