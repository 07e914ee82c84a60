package ojs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"CorpusHarvester/internal/domain"
	"CorpusHarvester/internal/infrastructure/web"
)

func newTestSource(t *testing.T, handler http.Handler, pages int) (*Source, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := web.NewClient(5*time.Second, nil)
	return NewSource(client, server.URL, "/index.php/pof/issue/archive", pages, nil), server
}

func TestListIssuesDeduplicates(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/index.php/pof/issue/archive", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<div class="issues_archive">
		  <a class="cover" href="https://pof.example/issue/view/101">Br. 1</a>
		  <a class="cover" href="https://pof.example/issue/view/102">Br. 2</a>
		</div>`))
	})
	mux.HandleFunc("/index.php/pof/issue/archive/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<div class="issues_archive">
		  <a class="cover" href="https://pof.example/issue/view/102">Br. 2</a>
		  <a class="cover" href="https://pof.example/issue/view/103">Br. 3</a>
		</div>`))
	})

	source, _ := newTestSource(t, mux, 2)

	issues, err := source.ListIssues(context.Background())
	if err != nil {
		t.Fatalf("ListIssues error: %v", err)
	}

	want := []string{
		"https://pof.example/issue/view/101",
		"https://pof.example/issue/view/102",
		"https://pof.example/issue/view/103",
	}
	if len(issues) != len(want) {
		t.Fatalf("expected %d issues, got %d: %v", len(want), len(issues), issues)
	}
	for i := range want {
		if issues[i] != want[i] {
			t.Fatalf("issue %d = %s, want %s", i, issues[i], want[i])
		}
	}
}

func TestListIssuesSkipsUnreachablePage(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/index.php/pof/issue/archive", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	})
	mux.HandleFunc("/index.php/pof/issue/archive/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<a class="cover" href="https://pof.example/issue/view/103">Br. 3</a>`))
	})

	source, _ := newTestSource(t, mux, 2)

	issues, err := source.ListIssues(context.Background())
	if err != nil {
		t.Fatalf("ListIssues error: %v", err)
	}
	if len(issues) != 1 || issues[0] != "https://pof.example/issue/view/103" {
		t.Fatalf("unexpected issues: %v", issues)
	}
}

const issueHTML = `
<h1>Prilozi za orijentalnu filologiju Br. 55 (2006)</h1>
<div class="sections">
  <div class="section">
    <h2>Studije</h2>
    <div class="obj_article_summary">
      <div class="title"><a href="https://pof.example/index.php/pof/article/view/123">Neki aspekti prevoda</a></div>
      <div class="meta">
        <div class="authors">A. Autor; B. Autor</div>
        <div class="pages">11-42</div>
      </div>
      <a class="obj_galley_link pdf" href="https://pof.example/index.php/pof/article/view/123/456">PDF</a>
    </div>
    <div class="obj_article_summary">
      <div class="title"><a href="https://pof.example/index.php/pof/article/view/124">Drugi rad</a></div>
    </div>
  </div>
</div>`

func TestListArticlesSectioned(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/issue/view/55", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(issueHTML))
	})

	source, server := newTestSource(t, mux, 1)

	refs, err := source.ListArticles(context.Background(), server.URL+"/issue/view/55")
	if err != nil {
		t.Fatalf("ListArticles error: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(refs))
	}

	first := refs[0]
	if first.ID != "123" {
		t.Fatalf("unexpected id: %s", first.ID)
	}
	if first.Title != "Neki aspekti prevoda" {
		t.Fatalf("unexpected title: %s", first.Title)
	}
	if first.Section != "Studije" {
		t.Fatalf("unexpected section: %s", first.Section)
	}
	if first.Year != "2006" {
		t.Fatalf("unexpected year: %s", first.Year)
	}
	if first.Authors != "A. Autor; B. Autor" {
		t.Fatalf("unexpected authors: %s", first.Authors)
	}
	if first.Pages != "11-42" {
		t.Fatalf("unexpected pages: %s", first.Pages)
	}
	if first.GalleyURL != "https://pof.example/index.php/pof/article/view/123/456" {
		t.Fatalf("unexpected galley url: %s", first.GalleyURL)
	}

	second := refs[1]
	if second.ID != "124" || second.GalleyURL != "" {
		t.Fatalf("unexpected second ref: %+v", second)
	}
}

func TestListArticlesFallsBackWithoutSections(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/issue/view/9", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<h1>Br. 9 (1959)</h1>
		<div class="obj_article_summary">
		  <div class="title"><a href="/index.php/pof/article/view/77">Stari rad</a></div>
		</div>`))
	})

	source, server := newTestSource(t, mux, 1)

	refs, err := source.ListArticles(context.Background(), server.URL+"/issue/view/9")
	if err != nil {
		t.Fatalf("ListArticles error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected 1 article, got %d", len(refs))
	}
	if refs[0].Section != "N/A" {
		t.Fatalf("unexpected section: %s", refs[0].Section)
	}
	if refs[0].Year != "1959" {
		t.Fatalf("unexpected year: %s", refs[0].Year)
	}
}

func TestEnrichFillsMissingFields(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/article/view/123", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<h1 class="page_title">Popunjeni naslov</h1>
		<div class="authors">
		  <div class="name">Prvi Autor</div>
		  <div class="name">Drugi Autor</div>
		</div>
		<div class="pages"><div class="value">101-120</div></div>
		<div class="published"><div class="value">12. 06. 1998.</div></div>
		<a class="obj_galley_link pdf" href="/article/view/123/456">PDF</a>`))
	})

	source, server := newTestSource(t, mux, 1)

	ref := source.Enrich(context.Background(), domain.ArticleReference{
		ID:         "123",
		LandingURL: server.URL + "/article/view/123",
	})

	if ref.Title != "Popunjeni naslov" {
		t.Fatalf("unexpected title: %s", ref.Title)
	}
	if ref.Authors != "Prvi Autor; Drugi Autor" {
		t.Fatalf("unexpected authors: %s", ref.Authors)
	}
	if ref.Pages != "101-120" {
		t.Fatalf("unexpected pages: %s", ref.Pages)
	}
	if ref.Year != "1998" {
		t.Fatalf("unexpected year: %s", ref.Year)
	}
	if ref.GalleyURL != "/article/view/123/456" {
		t.Fatalf("unexpected galley url: %s", ref.GalleyURL)
	}
}

func TestEnrichKeepsExistingFields(t *testing.T) {
	t.Parallel()

	ref := domain.ArticleReference{ID: "5", Title: "Postojeci"}
	source, _ := newTestSource(t, http.NewServeMux(), 1)

	// No landing URL means nothing to fetch.
	if got := source.Enrich(context.Background(), ref); got != ref {
		t.Fatalf("reference changed: %+v", got)
	}
}
