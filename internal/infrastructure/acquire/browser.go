package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"CorpusHarvester/internal/domain"
	"CorpusHarvester/internal/infrastructure/web"
)

// BrowserFetcher drives a headless Chrome session for galley pages that
// only expose the document link after scripts run. The browser starts on
// first use and is reused for the rest of the run.
type BrowserFetcher struct {
	client  *web.Client
	minSize int64
	waitFor time.Duration
	logger  *slog.Logger

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

func NewBrowserFetcher(client *web.Client, minSize int64, waitFor time.Duration, logger *slog.Logger) *BrowserFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserFetcher{
		client:  client,
		minSize: minSize,
		waitFor: waitFor,
		logger:  logger,
	}
}

func (b *BrowserFetcher) Fetch(ctx context.Context, ref domain.ArticleReference, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	session, err := b.session()
	if err != nil {
		return err
	}

	tab, cancel := chromedp.NewContext(session)
	defer cancel()

	if err := chromedp.Run(tab, chromedp.Navigate(ref.GalleyURL)); err != nil {
		return fmt.Errorf("open galley page %s: %w", ref.GalleyURL, err)
	}

	link, err := b.findLink(tab)
	if err != nil {
		return err
	}

	return b.fetchResolved(ctx, resolveAgainst(ref.GalleyURL, link), ref.GalleyURL, dest)
}

// findLink waits for the viewer iframe and falls back to download anchors
// when it never appears.
func (b *BrowserFetcher) findLink(tab context.Context) (string, error) {
	waitCtx, cancel := context.WithTimeout(tab, b.waitFor)
	defer cancel()

	var src string
	var ok bool
	err := chromedp.Run(waitCtx,
		chromedp.WaitReady("iframe#pdf", chromedp.ByQuery),
		chromedp.AttributeValue("iframe#pdf", "src", &src, &ok, chromedp.ByQuery),
	)
	if err == nil && ok && src != "" {
		b.logger.Debug("viewer iframe found", "src", src)
		return src, nil
	}

	var nodes []*cdp.Node
	if err := chromedp.Run(tab, chromedp.Nodes("a.download", &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return "", fmt.Errorf("query download anchors: %w", err)
	}
	for _, node := range nodes {
		if href := node.AttributeValue("href"); href != "" {
			return href, nil
		}
	}
	return "", errors.New("no document link in rendered page")
}

// fetchResolved downloads the link the browser uncovered over plain HTTP,
// with the galley page as referer.
func (b *BrowserFetcher) fetchResolved(ctx context.Context, link, galleyURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("build document request: %w", err)
	}
	b.client.Rotate().ApplyDocument(req.Header, galleyURL)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %d", link, resp.StatusCode)
	}
	return commitDocument(resp.Body, dest, b.minSize, b.logger)
}

func (b *BrowserFetcher) session() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		return b.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	b.logger.Info("headless browser started")
	b.browserCtx = browserCtx
	b.cancelBrowser = cancelBrowser
	b.cancelAlloc = cancelAlloc
	return b.browserCtx, nil
}

// Close tears the browser session down. Safe to call without one running.
func (b *BrowserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx == nil {
		return nil
	}
	b.cancelBrowser()
	b.cancelAlloc()
	b.browserCtx = nil
	b.logger.Info("headless browser stopped")
	return nil
}

// resolveAgainst absolutizes link the way the rendered page would, since
// raw attribute values may still be relative.
func resolveAgainst(pageURL, link string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return link
	}
	rel, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(rel).String()
}
