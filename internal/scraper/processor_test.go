package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/masahif/falconeye/internal/asset"
	"github.com/masahif/falconeye/internal/extract"
	"github.com/masahif/falconeye/internal/fetch"
	"github.com/masahif/falconeye/internal/parser"
)

const page = `<html><body>
<h1 id="title">Gallery</h1>
<p class="lead">First</p><p class="lead">Second</p>
<a id="home" href="/">Home</a><a href="/about">About</a>
<img src="/img/a.png"><img src="/img/b.png"><img src="/img/missing.png">
<iframe src="https://www.youtube.com/embed/x"></iframe>
<iframe src="https://maps.example.com/"></iframe>
</body></html>`

type memoryJournal struct {
	mu     sync.Mutex
	runs   []RunRecord
	assets []AssetRecord
	errors []ErrorRecord
}

func (j *memoryJournal) SaveRun(run *RunRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, *run)
	return nil
}

func (j *memoryJournal) SaveAssets(assets []*AssetRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, a := range assets {
		j.assets = append(j.assets, *a)
	}
	return nil
}

func (j *memoryJournal) SaveError(rec *ErrorRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, *rec)
	return nil
}

type failingJournal struct{}

func (failingJournal) SaveRun(*RunRecord) error       { return errors.New("disk full") }
func (failingJournal) SaveAssets([]*AssetRecord) error { return errors.New("disk full") }
func (failingJournal) SaveError(*ErrorRecord) error    { return errors.New("disk full") }

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	})
	mux.HandleFunc("/img/a.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("aaaa"))
	})
	mux.HandleFunc("/img/b.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("bb"))
	})
	mux.HandleFunc("/img/missing.png", http.NotFound)
	mux.HandleFunc("/gone", http.NotFound)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// absolutePage rewrites root-relative image sources to point at server
func absolutePage(server *httptest.Server) string {
	return strings.ReplaceAll(page, `src="/img/`, `src="`+server.URL+`/img/`)
}

func newTestProcessor(journal Journal, opts ...Option) *Processor {
	f := fetch.NewFetcher()
	if journal != nil {
		opts = append(opts, WithJournal(journal))
	}
	return NewProcessor(f, asset.NewDownloader(f, 2), opts...)
}

func expectValues(t *testing.T, expected, got []string) {
	t.Helper()
	if got == nil {
		t.Error("Expected non-nil values")
	}
	if len(expected) == 0 && len(got) == 0 {
		return
	}
	if !slices.Equal(expected, got) {
		t.Errorf("Expected values %q, got %q", expected, got)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRuleSelector(t *testing.T) {
	tests := []struct {
		rule     Rule
		selector string
		field    string
	}{
		{Rule{Kind: RuleAttribute, Tag: "a", Attr: "title"}, "a@title", "title"},
		{Rule{Kind: RuleTextByTag, Tag: "h1"}, "h1", "text"},
		{Rule{Kind: RuleTextByClass, Class: "lead"}, ".lead", "text"},
		{Rule{Kind: RuleTextByID, ID: "title"}, "#title", "text"},
		{Rule{Kind: RuleLinks}, "", "href"},
		{Rule{Kind: RuleLinkByID, ID: "home"}, "#home", "href"},
		{Rule{Kind: RuleImages}, "", "src"},
		{Rule{Kind: RuleVideos}, "", "src"},
	}

	for _, tt := range tests {
		t.Run(string(tt.rule.Kind), func(t *testing.T) {
			if got := tt.rule.Selector(); got != tt.selector {
				t.Errorf("Expected selector '%s', got '%s'", tt.selector, got)
			}
			if got := tt.rule.FieldName(); got != tt.field {
				t.Errorf("Expected field '%s', got '%s'", tt.field, got)
			}
		})
	}
}

func TestApply(t *testing.T) {
	doc := parser.Parse(page)

	tests := []struct {
		name string
		rule Rule
		want []string
	}{
		{"attr", Rule{Kind: RuleAttribute, Tag: "a", Attr: "href"}, []string{"/", "/about"}},
		{"text-tag", Rule{Kind: RuleTextByTag, Tag: "h1"}, []string{"Gallery"}},
		{"text-class", Rule{Kind: RuleTextByClass, Class: "lead"}, []string{"First", "Second"}},
		{"text-id", Rule{Kind: RuleTextByID, ID: "title"}, []string{"Gallery"}},
		{"links", Rule{Kind: RuleLinks}, []string{"/", "/about"}},
		{"link-id", Rule{Kind: RuleLinkByID, ID: "home"}, []string{"/"}},
		{"images", Rule{Kind: RuleImages}, []string{"/img/a.png", "/img/b.png", "/img/missing.png"}},
		{"videos", Rule{Kind: RuleVideos}, []string{"https://www.youtube.com/embed/x"}},
		{"custom providers", Rule{Kind: RuleVideos, Providers: []string{"maps.example.com"}}, []string{"https://maps.example.com/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(doc, tt.rule)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			expectValues(t, tt.want, got)
		})
	}
}

func TestApplyNotFound(t *testing.T) {
	got, err := Apply(parser.Parse(page), Rule{Kind: RuleTextByID, ID: "nope"})
	if !errors.Is(err, extract.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	expectValues(t, nil, got)
}

func TestApplyUnknownRule(t *testing.T) {
	got, err := Apply(parser.Parse(page), Rule{Kind: "xpath"})
	if !errors.Is(err, ErrUnknownRule) {
		t.Errorf("Expected ErrUnknownRule, got %v", err)
	}
	expectValues(t, nil, got)
}

func TestProcessURL(t *testing.T) {
	server := newSite(t)
	journal := &memoryJournal{}
	p := newTestProcessor(journal)

	result, err := p.Process(context.Background(), server.URL+"/", Rule{Kind: RuleLinks})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	expectValues(t, []string{"/", "/about"}, result.Values)
	if result.NotFound || result.RunID == "" {
		t.Errorf("Unexpected result %+v", result)
	}

	if len(journal.runs) != 1 {
		t.Fatalf("Expected 1 journal run, got %d", len(journal.runs))
	}
	run := journal.runs[0]
	if run.ID != result.RunID || run.Status != StatusCompleted || run.ResultCount != 2 || run.Rule != "links" {
		t.Errorf("Unexpected run record %+v", run)
	}
	if run.FinishedAt.Before(run.StartedAt) {
		t.Error("Expected run to finish after it started")
	}
}

func TestProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(page), 0o600); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}

	result, err := newTestProcessor(nil).Process(context.Background(), path, Rule{Kind: RuleTextByClass, Class: "lead"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	expectValues(t, []string{"First", "Second"}, result.Values)
}

func TestProcessStdin(t *testing.T) {
	p := newTestProcessor(nil, WithStdin(strings.NewReader(page)))

	result, err := p.Process(context.Background(), StdinSource, Rule{Kind: RuleLinkByID, ID: "home"})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	expectValues(t, []string{"/"}, result.Values)
}

func TestProcessMissingFile(t *testing.T) {
	journal := &memoryJournal{}
	result, err := newTestProcessor(journal).Process(context.Background(),
		filepath.Join(t.TempDir(), "absent.html"), Rule{Kind: RuleLinks})

	if err == nil {
		t.Fatal("Expected error for a missing file")
	}
	if result == nil {
		t.Fatal("Expected a result even on failure")
	}
	expectValues(t, nil, result.Values)

	if len(journal.runs) != 1 {
		t.Fatalf("Expected 1 journal run, got %d", len(journal.runs))
	}
	if journal.runs[0].Status != StatusFailed || journal.runs[0].ErrorType != "io_error" {
		t.Errorf("Unexpected run record %+v", journal.runs[0])
	}
	if len(journal.errors) != 0 {
		t.Errorf("Expected no fetch errors for a file source, got %d", len(journal.errors))
	}
}

func TestProcessNotFound(t *testing.T) {
	journal := &memoryJournal{}
	p := newTestProcessor(journal, WithStdin(strings.NewReader(page)))

	result, err := p.Process(context.Background(), StdinSource, Rule{Kind: RuleTextByID, ID: "missing"})
	if err != nil {
		t.Fatalf("Not-found must not be an error, got %v", err)
	}
	if !result.NotFound {
		t.Error("Expected NotFound to be set")
	}
	expectValues(t, nil, result.Values)

	if len(journal.runs) != 1 {
		t.Fatalf("Expected 1 journal run, got %d", len(journal.runs))
	}
	if journal.runs[0].Status != StatusNotFound || journal.runs[0].Selector != "#missing" {
		t.Errorf("Unexpected run record %+v", journal.runs[0])
	}
}

func TestProcessFetchError(t *testing.T) {
	server := newSite(t)
	journal := &memoryJournal{}

	result, err := newTestProcessor(journal).Process(context.Background(), server.URL+"/gone", Rule{Kind: RuleLinks})
	if !errors.Is(err, fetch.ErrHTTPStatus) {
		t.Fatalf("Expected ErrHTTPStatus, got %v", err)
	}
	expectValues(t, nil, result.Values)

	if len(journal.runs) != 1 {
		t.Fatalf("Expected 1 journal run, got %d", len(journal.runs))
	}
	if journal.runs[0].Status != StatusFailed || journal.runs[0].ErrorType != string(fetch.KindHTTPStatus) {
		t.Errorf("Unexpected run record %+v", journal.runs[0])
	}

	if len(journal.errors) != 1 {
		t.Fatalf("Expected 1 fetch error, got %d", len(journal.errors))
	}
	if journal.errors[0].Source != server.URL+"/gone" || journal.errors[0].ErrorType != string(fetch.KindHTTPStatus) {
		t.Errorf("Unexpected error record %+v", journal.errors[0])
	}
}

func TestProcessInvalidInput(t *testing.T) {
	journal := &memoryJournal{}
	p := newTestProcessor(journal, WithStdin(strings.NewReader(page)))

	result, err := p.Process(context.Background(), StdinSource, Rule{Kind: RuleTextByTag, Tag: "not a tag"})
	if !errors.Is(err, extract.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	expectValues(t, nil, result.Values)

	if len(journal.runs) != 1 {
		t.Fatalf("Expected 1 journal run, got %d", len(journal.runs))
	}
	if journal.runs[0].Status != StatusFailed || journal.runs[0].ErrorType != string(extract.KindInvalidInput) {
		t.Errorf("Unexpected run record %+v", journal.runs[0])
	}
}

func TestProcessImagesWithDownload(t *testing.T) {
	server := newSite(t)
	journal := &memoryJournal{}
	dir := filepath.Join(t.TempDir(), "images")
	p := newTestProcessor(journal, WithStdin(strings.NewReader(absolutePage(server))))

	result, err := p.Process(context.Background(), StdinSource, Rule{Kind: RuleImages, DownloadDir: dir})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.Values) != 3 || len(result.Assets) != 3 {
		t.Fatalf("Expected 3 values and 3 assets, got %d and %d", len(result.Values), len(result.Assets))
	}
	if result.DownloadErr != nil {
		t.Errorf("Unexpected download error %v", result.DownloadErr)
	}

	saved := 0
	for _, o := range result.Assets {
		if o.OK() {
			saved++
			continue
		}
		if o.FileName != "missing.png" || o.ErrorKind() != string(fetch.KindHTTPStatus) {
			t.Errorf("Unexpected failed asset %+v", o)
		}
	}
	if saved != 2 {
		t.Errorf("Expected 2 saved assets, got %d", saved)
	}

	data, err := os.ReadFile(filepath.Join(dir, "a.png"))
	if err != nil {
		t.Fatalf("Expected a.png on disk: %v", err)
	}
	if string(data) != "aaaa" {
		t.Errorf("Unexpected content %q", data)
	}
	if fileExists(filepath.Join(dir, "missing.png")) {
		t.Error("Expected no file for the failed download")
	}

	if len(journal.assets) != 3 {
		t.Fatalf("Expected 3 journal assets, got %d", len(journal.assets))
	}
	statuses := map[string]string{}
	for _, a := range journal.assets {
		if a.RunID != result.RunID {
			t.Errorf("Expected run id %s, got %s", result.RunID, a.RunID)
		}
		statuses[a.FileName] = a.Status
	}
	expected := map[string]string{
		"a.png":       AssetSaved,
		"b.png":       AssetSaved,
		"missing.png": AssetFailed,
	}
	for name, status := range expected {
		if statuses[name] != status {
			t.Errorf("%s: expected status %s, got %s", name, status, statuses[name])
		}
	}
}

func TestProcessImagesWithoutDownloadDir(t *testing.T) {
	journal := &memoryJournal{}
	p := newTestProcessor(journal, WithStdin(strings.NewReader(page)))

	result, err := p.Process(context.Background(), StdinSource, Rule{Kind: RuleImages})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.Values) != 3 {
		t.Errorf("Expected 3 images, got %d", len(result.Values))
	}
	if len(result.Assets) != 0 || len(journal.assets) != 0 {
		t.Error("Expected no downloads without a download directory")
	}
}

func TestProcessUnusableDownloadDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	p := newTestProcessor(nil, WithStdin(strings.NewReader(page)))

	result, err := p.Process(context.Background(), StdinSource,
		Rule{Kind: RuleImages, DownloadDir: filepath.Join(blocker, "sub")})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.DownloadErr == nil {
		t.Error("Expected DownloadErr for an unusable directory")
	}
	if len(result.Values) != 3 {
		t.Errorf("Expected discovered images to be kept, got %d", len(result.Values))
	}
}

func TestProcessJournalFailureIsNotFatal(t *testing.T) {
	p := newTestProcessor(failingJournal{}, WithStdin(strings.NewReader(page)))

	result, err := p.Process(context.Background(), StdinSource, Rule{Kind: RuleLinks})
	if err != nil {
		t.Fatalf("Journal failures must not fail the run, got %v", err)
	}
	expectValues(t, []string{"/", "/about"}, result.Values)
}
