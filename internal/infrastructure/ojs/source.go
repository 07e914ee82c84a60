package ojs

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"CorpusHarvester/internal/domain"
	"CorpusHarvester/internal/infrastructure/web"
	"CorpusHarvester/internal/ports"
)

const archivePause = time.Second

var (
	issueYearExpr = regexp.MustCompile(`\((19|20)\d{2}\)`)
	viewIDExpr    = regexp.MustCompile(`/view/(\d+)`)
	anyYearExpr   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// Source walks an Open Journal Systems archive: numbered archive listing
// pages, issue tables of contents, and article landing pages.
type Source struct {
	client       *web.Client
	baseURL      string
	archivePath  string
	archivePages int
	logger       *slog.Logger
}

var _ ports.IssueSource = (*Source)(nil)

func NewSource(client *web.Client, baseURL, archivePath string, archivePages int, logger *slog.Logger) *Source {
	if archivePages < 1 {
		archivePages = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		client:       client,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		archivePath:  archivePath,
		archivePages: archivePages,
		logger:       logger,
	}
}

// Name identifies the strategy inside the registry.
func (s *Source) Name() string {
	return "archive"
}

func (s *Source) archiveURLs() []string {
	base := s.baseURL + s.archivePath
	urls := []string{base}
	for i := 1; i < s.archivePages; i++ {
		urls = append(urls, fmt.Sprintf("%s/%d", base, i))
	}
	return urls
}

// ListIssues collects issue links from every archive listing page,
// deduplicated in first-seen order. An unreachable page is logged and
// skipped; the remaining pages still contribute.
func (s *Source) ListIssues(ctx context.Context) ([]string, error) {
	var issues []string
	seen := map[string]struct{}{}

	for i, archiveURL := range s.archiveURLs() {
		if i > 0 {
			select {
			case <-ctx.Done():
				return issues, ctx.Err()
			case <-time.After(archivePause):
			}
		}

		doc, err := s.client.GetDocument(ctx, archiveURL)
		if err != nil {
			s.logger.Warn("archive page unreachable", "url", archiveURL, "error", err)
			continue
		}

		doc.Find("a.cover").Each(func(_ int, link *goquery.Selection) {
			href, ok := link.Attr("href")
			if !ok || href == "" {
				return
			}
			if _, dup := seen[href]; dup {
				return
			}
			seen[href] = struct{}{}
			issues = append(issues, href)
		})
	}

	if len(issues) == 0 {
		s.logger.Warn("no issues found in the archive listing")
	} else {
		s.logger.Info("issues discovered", "count", len(issues))
	}
	return issues, nil
}

// ListArticles parses one issue's table of contents. Sectioned entries
// are preferred; issues without section blocks fall back to selecting
// article summaries directly.
func (s *Source) ListArticles(ctx context.Context, issueURL string) ([]domain.ArticleReference, error) {
	doc, err := s.client.GetDocument(ctx, issueURL)
	if err != nil {
		return nil, fmt.Errorf("fetch issue: %w", err)
	}

	issueInfo := "Unknown Issue"
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		issueInfo = strings.TrimSpace(h1.Text())
	}
	year := ""
	if m := issueYearExpr.FindString(issueInfo); m != "" {
		year = strings.Trim(m, "()")
	}

	var refs []domain.ArticleReference
	doc.Find(".sections .section").Each(func(_ int, section *goquery.Selection) {
		sectionName := "N/A"
		if h2 := section.Find("h2").First(); h2.Length() > 0 {
			sectionName = strings.TrimSpace(h2.Text())
		}
		section.Find(".obj_article_summary").Each(func(_ int, summary *goquery.Selection) {
			if ref, ok := s.parseSummary(summary, issueInfo, sectionName, year); ok {
				refs = append(refs, ref)
			}
		})
	})

	if len(refs) == 0 {
		doc.Find(".obj_article_summary").Each(func(_ int, summary *goquery.Selection) {
			if ref, ok := s.parseSummary(summary, issueInfo, "N/A", year); ok {
				refs = append(refs, ref)
			}
		})
	}

	s.logger.Info("articles discovered", "issue", issueInfo, "count", len(refs))
	return refs, nil
}

func (s *Source) parseSummary(summary *goquery.Selection, issueInfo, sectionName, year string) (domain.ArticleReference, bool) {
	ref := domain.ArticleReference{
		Issue:   issueInfo,
		Section: sectionName,
		Year:    year,
	}

	if titleLink := summary.Find(".title a").First(); titleLink.Length() > 0 {
		if href, ok := titleLink.Attr("href"); ok {
			ref.LandingURL = href
		}
		ref.Title = strings.TrimSpace(titleLink.Text())
	}
	if m := viewIDExpr.FindStringSubmatch(ref.LandingURL); m != nil {
		ref.ID = m[1]
	}

	if meta := summary.Find(".meta").First(); meta.Length() > 0 {
		ref.Authors = strings.TrimSpace(meta.Find(".authors").First().Text())
		ref.Pages = strings.TrimSpace(meta.Find(".pages").First().Text())
	}

	if galley := summary.Find(".obj_galley_link.pdf").First(); galley.Length() > 0 {
		if href, ok := galley.Attr("href"); ok {
			ref.GalleyURL = href
		}
	}

	// Entries with neither a landing page nor a galley cannot be used.
	if ref.LandingURL == "" && ref.GalleyURL == "" {
		return domain.ArticleReference{}, false
	}
	if ref.ID == "" {
		ref.ID = "unknown-" + uuid.NewString()[:8]
	}
	return ref, true
}

// Enrich fills missing fields from the article landing page. Failures
// log and return the reference unchanged.
func (s *Source) Enrich(ctx context.Context, ref domain.ArticleReference) domain.ArticleReference {
	if ref.LandingURL == "" {
		return ref
	}

	doc, err := s.client.GetDocument(ctx, ref.LandingURL)
	if err != nil {
		s.logger.Warn("landing page unreachable", "url", ref.LandingURL, "error", err)
		return ref
	}

	if ref.GalleyURL == "" {
		if href, ok := doc.Find(".obj_galley_link.pdf").First().Attr("href"); ok {
			ref.GalleyURL = href
		}
	}
	if ref.Title == "" {
		ref.Title = strings.TrimSpace(doc.Find("h1.page_title").First().Text())
	}
	if ref.Authors == "" {
		var names []string
		doc.Find(".authors .name").Each(func(_ int, name *goquery.Selection) {
			if text := strings.TrimSpace(name.Text()); text != "" {
				names = append(names, text)
			}
		})
		ref.Authors = strings.Join(names, "; ")
	}
	if ref.Pages == "" {
		ref.Pages = strings.TrimSpace(doc.Find(".pages .value").First().Text())
	}
	if ref.Year == "" {
		published := strings.TrimSpace(doc.Find(".published .value").First().Text())
		if m := anyYearExpr.FindString(published); m != "" {
			ref.Year = m
		}
	}

	return ref
}
