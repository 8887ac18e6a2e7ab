package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/notho/socialgen/internal/model"
	"github.com/notho/socialgen/internal/post"
	"github.com/notho/socialgen/internal/security"
)

// --- テスト用モック ---

// allowAllGuard はhttptestサーバー（ループバック）へのアクセスを許可するモック。
type allowAllGuard struct {
	validateFn func(rawURL string) error
}

func (g *allowAllGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (g *allowAllGuard) ValidateURL(rawURL string) error {
	if g.validateFn != nil {
		return g.validateFn(rawURL)
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return fmt.Errorf("%w: scheme", security.ErrInvalidURL)
	}
	return nil
}

// mockPostCreator は作成された下書きを保持する。
type mockPostCreator struct {
	created  []post.CreateInput
	demo     bool
	createFn func(in post.CreateInput) error
}

func (m *mockPostCreator) Create(_ context.Context, in post.CreateInput) (post.Result[*model.Post], error) {
	if m.createFn != nil {
		if err := m.createFn(in); err != nil {
			return post.Result[*model.Post]{}, err
		}
	}
	m.created = append(m.created, in)
	mode := post.ModeLive
	if m.demo {
		mode = post.ModeMock
	}
	return post.Result[*model.Post]{
		Data: &model.Post{
			ID:        fmt.Sprintf("p%d", len(m.created)),
			UserID:    in.UserID,
			Title:     in.Title,
			Content:   in.Content,
			Platform:  in.Platform,
			Status:    in.Status,
			ImageURL:  in.ImageURL,
			Prompt:    in.Prompt,
			Objective: in.Objective,
		},
		Mode: mode,
	}, nil
}

func (m *mockPostCreator) DemoMode() bool { return m.demo }

// mockImportMetrics は記録内容を保持する。
type mockImportMetrics struct {
	imported  []int
	failures  []string
	latencies int
}

func (m *mockImportMetrics) RecordPostsImported(count int) {
	m.imported = append(m.imported, count)
}

func (m *mockImportMetrics) RecordImportFailure(reason string) {
	m.failures = append(m.failures, reason)
}

func (m *mockImportMetrics) RecordImportLatency(time.Duration) { m.latencies++ }

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example &amp; Co Blog</title>
    <link>https://example.com</link>
    <item>
      <title>First &lt;b&gt;post&lt;/b&gt;</title>
      <link>https://example.com/first</link>
      <description>&lt;p&gt;Hello &lt;em&gt;readers&lt;/em&gt;&lt;/p&gt;&lt;p&gt;second paragraph&lt;/p&gt;</description>
      <enclosure url="https://cdn.example.com/first.jpg" type="image/jpeg" length="1000"/>
    </item>
    <item>
      <title>Second post</title>
      <link>https://example.com/second</link>
      <description>Another summary</description>
    </item>
    <item>
      <title>Third post</title>
      <link>https://example.com/third</link>
      <description>Third summary</description>
    </item>
  </channel>
</rss>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		fmt.Fprint(w, testRSS)
	})
	mux.HandleFunc("/xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, testRSS)
	})
	mux.HandleFunc("/blog", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Blog</title>
<link rel="alternate" type="application/rss+xml" href="/feed.xml"></head><body>hi</body></html>`)
	})
	mux.HandleFunc("/nofeed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>No feed</title></head><body></body></html>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `{"title": "this is json, not a feed"}`)
	})
	mux.HandleFunc("/image.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(guard security.SSRFGuardService, posts PostCreator, metrics ImportMetrics) *Service {
	return NewService(guard, security.NewTextSanitizer(), posts, metrics, Config{
		Timeout: 5 * time.Second,
		MaxSize: 1 << 20,
	})
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("code = %q, want %q", apiErr.Code, code)
	}
}

func TestImport_DirectFeed(t *testing.T) {
	srv := newFeedServer(t)
	posts := &mockPostCreator{}
	metrics := &mockImportMetrics{}
	svc := newTestService(&allowAllGuard{}, posts, metrics)

	res, err := svc.Import(context.Background(), Request{
		UserID:   "u1",
		URL:      srv.URL + "/feed.xml",
		Platform: model.PlatformLinkedIn,
	})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if len(res.Posts) != 3 {
		t.Fatalf("imported %d posts, want 3", len(res.Posts))
	}
	if res.FeedTitle != "Example & Co Blog" {
		t.Errorf("FeedTitle = %q", res.FeedTitle)
	}
	if res.Mode != post.ModeLive {
		t.Errorf("Mode = %q, want live", res.Mode)
	}

	first := posts.created[0]
	if first.Title != "First post" {
		t.Errorf("Title = %q, want %q", first.Title, "First post")
	}
	if first.Content != "Hello readers second paragraph\n\nhttps://example.com/first" {
		t.Errorf("Content = %q", first.Content)
	}
	if first.ImageURL != "https://cdn.example.com/first.jpg" {
		t.Errorf("ImageURL = %q", first.ImageURL)
	}
	if first.Prompt != "https://example.com/first" || first.Objective != ObjectiveRepurpose {
		t.Errorf("Prompt/Objective = %q/%q", first.Prompt, first.Objective)
	}
	if first.Status != model.PostStatusDraft || first.UserID != "u1" || first.Platform != model.PlatformLinkedIn {
		t.Errorf("unexpected draft fields: %+v", first)
	}

	if len(metrics.imported) != 1 || metrics.imported[0] != 3 {
		t.Errorf("imported metric = %v, want [3]", metrics.imported)
	}
	if metrics.latencies != 1 {
		t.Errorf("latency recorded %d times, want 1", metrics.latencies)
	}
}

func TestImport_DiscoversFeedFromHTML(t *testing.T) {
	srv := newFeedServer(t)
	posts := &mockPostCreator{}
	svc := newTestService(&allowAllGuard{}, posts, nil)

	res, err := svc.Import(context.Background(), Request{
		UserID: "u1", URL: srv.URL + "/blog", Platform: model.PlatformFacebook, Limit: 2,
	})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.FeedURL != srv.URL+"/feed.xml" {
		t.Errorf("FeedURL = %q, want %q", res.FeedURL, srv.URL+"/feed.xml")
	}
	if len(res.Posts) != 2 {
		t.Errorf("imported %d posts, want 2 (limit)", len(res.Posts))
	}
}

func TestImport_GenericXMLFeed(t *testing.T) {
	srv := newFeedServer(t)
	svc := newTestService(&allowAllGuard{}, &mockPostCreator{}, nil)

	res, err := svc.Import(context.Background(), Request{UserID: "u", URL: srv.URL + "/xml", Platform: model.PlatformTikTok})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(res.Posts) != 3 {
		t.Errorf("imported %d posts, want 3", len(res.Posts))
	}
}

func TestImport_TwitterContentFitsLimit(t *testing.T) {
	long := strings.Repeat("word ", 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<rss version="2.0"><channel><title>t</title>
<item><title>Long</title><link>https://example.com/long</link><description>%s</description></item>
</channel></rss>`, long)
	}))
	defer srv.Close()

	posts := &mockPostCreator{}
	svc := newTestService(&allowAllGuard{}, posts, nil)

	if _, err := svc.Import(context.Background(), Request{UserID: "u", URL: srv.URL, Platform: model.PlatformTwitter}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	content := posts.created[0].Content
	if n := utf8.RuneCountInString(content); n > 280 {
		t.Errorf("content has %d runes, limit 280", n)
	}
	if !strings.HasSuffix(content, "https://example.com/long") {
		t.Errorf("link should be kept at the end, got %q", content)
	}
}

func TestImport_DemoModeReportsMock(t *testing.T) {
	srv := newFeedServer(t)
	svc := newTestService(&allowAllGuard{}, &mockPostCreator{demo: true}, nil)

	res, err := svc.Import(context.Background(), Request{UserID: "u", URL: srv.URL + "/feed.xml", Platform: model.PlatformInstagram})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Mode != post.ModeMock {
		t.Errorf("Mode = %q, want mock", res.Mode)
	}
}

func TestImport_SkipsItemsRejectedByPostService(t *testing.T) {
	srv := newFeedServer(t)
	posts := &mockPostCreator{createFn: func(in post.CreateInput) error {
		if strings.Contains(in.Prompt, "second") {
			return model.NewMissingFieldError("content")
		}
		return nil
	}}
	svc := newTestService(&allowAllGuard{}, posts, nil)

	res, err := svc.Import(context.Background(), Request{UserID: "u", URL: srv.URL + "/feed.xml", Platform: model.PlatformLinkedIn})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(res.Posts) != 2 {
		t.Errorf("imported %d posts, want 2", len(res.Posts))
	}
}

func TestImport_StoreFailure(t *testing.T) {
	srv := newFeedServer(t)
	posts := &mockPostCreator{createFn: func(post.CreateInput) error { return errors.New("db down") }}
	metrics := &mockImportMetrics{}
	svc := newTestService(&allowAllGuard{}, posts, metrics)

	_, err := svc.Import(context.Background(), Request{UserID: "u", URL: srv.URL + "/feed.xml", Platform: model.PlatformLinkedIn})
	assertAPIErrorCode(t, err, model.ErrCodeInternal)
	if len(metrics.failures) != 1 || metrics.failures[0] != "store" {
		t.Errorf("failures = %v, want [store]", metrics.failures)
	}
}

func TestImport_Errors(t *testing.T) {
	srv := newFeedServer(t)

	tests := []struct {
		name       string
		req        Request
		guard      *allowAllGuard
		wantCode   string
		wantReason string
	}{
		{"missing user", Request{URL: srv.URL + "/feed.xml", Platform: model.PlatformTwitter}, &allowAllGuard{}, model.ErrCodeMissingField, ""},
		{"missing url", Request{UserID: "u", Platform: model.PlatformTwitter}, &allowAllGuard{}, model.ErrCodeMissingField, ""},
		{"missing platform", Request{UserID: "u", URL: srv.URL + "/feed.xml"}, &allowAllGuard{}, model.ErrCodeMissingField, ""},
		{"unknown platform", Request{UserID: "u", URL: srv.URL + "/feed.xml", Platform: "myspace"}, &allowAllGuard{}, model.ErrCodeInvalidPlatform, ""},
		{"invalid url", Request{UserID: "u", URL: "ftp://example.com/feed", Platform: model.PlatformTwitter}, &allowAllGuard{}, model.ErrCodeInvalidURL, "invalid_url"},
		{"blocked url", Request{UserID: "u", URL: srv.URL + "/feed.xml", Platform: model.PlatformTwitter},
			&allowAllGuard{validateFn: func(string) error { return fmt.Errorf("%w: loopback", security.ErrBlockedURL) }},
			model.ErrCodeSSRFBlocked, "blocked"},
		{"http error", Request{UserID: "u", URL: srv.URL + "/gone", Platform: model.PlatformTwitter}, &allowAllGuard{}, model.ErrCodeFetchFailed, "fetch"},
		{"no feed link", Request{UserID: "u", URL: srv.URL + "/nofeed", Platform: model.PlatformTwitter}, &allowAllGuard{}, model.ErrCodeFeedNotDetected, "not_detected"},
		{"not html or feed", Request{UserID: "u", URL: srv.URL + "/image.png", Platform: model.PlatformTwitter}, &allowAllGuard{}, model.ErrCodeFeedNotDetected, "not_detected"},
		{"broken feed", Request{UserID: "u", URL: srv.URL + "/broken", Platform: model.PlatformTwitter}, &allowAllGuard{}, model.ErrCodeParseFailed, "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &mockImportMetrics{}
			svc := newTestService(tt.guard, &mockPostCreator{}, metrics)

			_, err := svc.Import(context.Background(), tt.req)
			assertAPIErrorCode(t, err, tt.wantCode)

			if tt.wantReason == "" {
				if len(metrics.failures) != 0 {
					t.Errorf("failures = %v, want none for input validation", metrics.failures)
				}
				return
			}
			if len(metrics.failures) != 1 || metrics.failures[0] != tt.wantReason {
				t.Errorf("failures = %v, want [%s]", metrics.failures, tt.wantReason)
			}
		})
	}
}

func TestImport_RealGuardBlocksLoopback(t *testing.T) {
	srv := newFeedServer(t)
	svc := newTestService(security.NewSSRFGuard(), &mockPostCreator{}, nil)

	_, err := svc.Import(context.Background(), Request{UserID: "u", URL: srv.URL + "/feed.xml", Platform: model.PlatformTwitter})
	assertAPIErrorCode(t, err, model.ErrCodeSSRFBlocked)
}

func TestComposeContent(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		link    string
		limit   int
		want    string
	}{
		{"both fit", "hello", "https://e.com", 100, "hello\n\nhttps://e.com"},
		{"summary only", "hello world", "", 8, "hello..."},
		{"link only", "", "https://e.com", 100, "https://e.com"},
		{"summary truncated", "abcdefghij", "https://e.com", 22, "abcd...\n\nhttps://e.com"},
		{"no room for summary", "abcdefghij", "https://e.com", 16, "https://e.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := composeContent(tt.summary, tt.link, tt.limit); got != tt.want {
				t.Errorf("composeContent() = %q, want %q", got, tt.want)
			}
		})
	}
}
