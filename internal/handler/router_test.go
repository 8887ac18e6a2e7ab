package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notho/socialgen/internal/config"
	"github.com/notho/socialgen/internal/database"
	"github.com/notho/socialgen/internal/generation"
	"github.com/notho/socialgen/internal/importer"
	"github.com/notho/socialgen/internal/metrics"
	"github.com/notho/socialgen/internal/middleware"
	"github.com/notho/socialgen/internal/model"
	"github.com/notho/socialgen/internal/post"
	"github.com/notho/socialgen/internal/repository"
	"github.com/notho/socialgen/internal/security"
	"github.com/notho/socialgen/internal/user"
)

type testRouterOptions struct {
	live              bool
	generationPerMin  int
	corsAllowedOrigin string
}

// newTestRouter は本物のサービス群で構成したルーターを返す。
// liveの場合はインメモリSQLiteを使う。
func newTestRouter(t *testing.T, opts testRouterOptions) http.Handler {
	t.Helper()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	sanitizer := security.NewTextSanitizer()

	var (
		postRepo repository.PostRepository
		userRepo repository.UserRepository
		driver   string
	)
	if opts.live {
		db, err := database.Open(config.DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("failed to open sqlite: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		if err := database.RunMigrations(db, config.DriverSQLite); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		postRepo = repository.NewSQLPostRepo(db)
		userRepo = repository.NewSQLUserRepo(db)
		driver = string(config.DriverSQLite)
	}

	postSvc := post.NewService(postRepo, allowGuard{}, collector)
	importSvc := importer.NewService(allowGuard{}, sanitizer, postSvc, collector, importer.Config{Timeout: 0, MaxSize: 1 << 20})

	templates, err := generation.LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}
	genSvc := generation.NewService(templates, generation.Config{ImageBaseURL: "https://picsum.photos", ImageCount: 2}, collector)

	genPerMin := opts.generationPerMin
	if genPerMin == 0 {
		genPerMin = 100
	}
	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(1000, genPerMin))
	t.Cleanup(limiter.Stop)

	origin := opts.corsAllowedOrigin
	if origin == "" {
		origin = "http://localhost:3000"
	}

	return NewRouter(&RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		CORSAllowedOrigin: origin,
		RateLimiter:       limiter,
		StatusRecorder:    collector,
		MetricsHandler:    metrics.Handler(reg),
		ValidationMetrics: collector,
		GenerationService: genSvc,
		PostService:       NewPostServiceAdapter(postSvc),
		ImportService:     NewImportServiceAdapter(importSvc),
		UserService:       user.NewService(userRepo),
		Status:            StatusInfo{DemoMode: !opts.live, Driver: driver},
	})
}

func doRequest(t *testing.T, h http.Handler, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v (body=%s)", err, w.Body.String())
	}
	return v
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t, testRouterOptions{})

	w := doRequest(t, h, http.MethodGet, "/health", "", "")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestRouter_Status(t *testing.T) {
	demo := doRequest(t, newTestRouter(t, testRouterOptions{}), http.MethodGet, "/api/status", "", "")
	if got := decodeBody[statusResponse](t, demo); !got.DemoMode || got.Driver != "" {
		t.Errorf("demo status = %+v", got)
	}

	live := doRequest(t, newTestRouter(t, testRouterOptions{live: true}), http.MethodGet, "/api/status", "", "")
	if got := decodeBody[statusResponse](t, live); got.DemoMode || got.Driver != "sqlite" {
		t.Errorf("live status = %+v", got)
	}
}

func TestRouter_Platforms(t *testing.T) {
	w := doRequest(t, newTestRouter(t, testRouterOptions{}), http.MethodGet, "/api/platforms", "", "")

	resp := decodeBody[platformsResponse](t, w)
	if len(resp.Platforms) != 5 {
		t.Fatalf("platforms = %d, want 5", len(resp.Platforms))
	}
	for _, p := range resp.Platforms {
		if p.Platform == model.PlatformTwitter && p.MaxCharacters != 280 {
			t.Errorf("twitter limit = %d, want 280", p.MaxCharacters)
		}
	}
}

func TestRouter_PostCRUDRoundTrip(t *testing.T) {
	h := newTestRouter(t, testRouterOptions{live: true})

	// 作成（user_idはX-User-IDから）
	w := doRequest(t, h, http.MethodPost, "/api/posts",
		`{"title":"Hello","content":"Press <Enter> to start, a &amp; b","platform":"linkedin","status":"scheduled","scheduled_at":"2030-01-01T00:00:00Z"}`, "alice")
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body=%s", w.Code, w.Body.String())
	}
	created := decodeBody[postEnvelope](t, w)
	if created.Mock {
		t.Error("ライブモードではmock=falseであるべき")
	}
	const content = "Press <Enter> to start, a &amp; b"
	if created.Post.UserID != "alice" || created.Post.Content != content || created.Post.Status != "scheduled" {
		t.Errorf("unexpected created post: %+v", created.Post)
	}
	if created.Post.ScheduledAt == nil {
		t.Fatal("scheduled_at should be set after create")
	}
	id := created.Post.ID

	// 本文は受け取ったバイト列のまま読み戻せる
	got := decodeBody[postEnvelope](t, doRequest(t, h, http.MethodGet, "/api/posts/"+id, "", "alice"))
	if got.Post.Content != content {
		t.Errorf("content = %q, want %q", got.Post.Content, content)
	}

	// 一覧
	list := decodeBody[postListEnvelope](t, doRequest(t, h, http.MethodGet, "/api/posts?userId=alice", "", ""))
	if len(list.Posts) != 1 || list.Posts[0].ID != id {
		t.Fatalf("list = %+v, want the created post", list.Posts)
	}

	// 部分更新
	w = doRequest(t, h, http.MethodPut, "/api/posts/"+id, `{"status":"published","scheduled_at":null}`, "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body=%s", w.Code, w.Body.String())
	}
	updated := decodeBody[postEnvelope](t, w)
	if updated.Post.Status != "published" || updated.Post.Title != "Hello" || updated.Post.Content != content {
		t.Errorf("only status and scheduled_at should change: %+v", updated.Post)
	}
	if updated.Post.ScheduledAt != nil {
		t.Errorf("scheduled_at = %v, want cleared by null", updated.Post.ScheduledAt)
	}
	got = decodeBody[postEnvelope](t, doRequest(t, h, http.MethodGet, "/api/posts/"+id, "", "alice"))
	if got.Post.ScheduledAt != nil {
		t.Errorf("stored scheduled_at = %v, want nil", got.Post.ScheduledAt)
	}

	// キーを省略した時刻は変更しない
	w = doRequest(t, h, http.MethodPut, "/api/posts/"+id, `{"published_at":"2030-02-01T00:00:00Z"}`, "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body=%s", w.Code, w.Body.String())
	}
	if p := decodeBody[postEnvelope](t, w).Post; p.PublishedAt == nil || p.ScheduledAt != nil {
		t.Errorf("published_at should be set and scheduled_at untouched: %+v", p)
	}
	if updated.Post.UpdatedAt.Before(created.Post.UpdatedAt) {
		t.Errorf("updated_at should not go backwards: %v < %v", updated.Post.UpdatedAt, created.Post.UpdatedAt)
	}

	// 集計
	stats := decodeBody[postStatsEnvelope](t, doRequest(t, h, http.MethodGet, "/api/posts/stats", "", "alice"))
	if stats.Stats.Total != 1 || stats.Stats.ByStatus["published"] != 1 || stats.Stats.ByPlatform["linkedin"] != 1 {
		t.Errorf("stats = %+v", stats.Stats)
	}

	// 削除
	if w := doRequest(t, h, http.MethodDelete, "/api/posts/"+id, "", "alice"); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := doRequest(t, h, http.MethodGet, "/api/posts/"+id, "", "alice"); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
	list = decodeBody[postListEnvelope](t, doRequest(t, h, http.MethodGet, "/api/posts", "", "alice"))
	if len(list.Posts) != 0 {
		t.Errorf("list after delete = %+v, want empty", list.Posts)
	}
}

func TestRouter_DemoModeNeverFails(t *testing.T) {
	h := newTestRouter(t, testRouterOptions{})

	requests := []struct {
		method, path, body string
		wantStatus         int
	}{
		{http.MethodGet, "/api/posts", "", http.StatusOK},
		{http.MethodPost, "/api/posts", `{"content":"hi","platform":"twitter"}`, http.StatusCreated},
		{http.MethodGet, "/api/posts/anything", "", http.StatusOK},
		{http.MethodPut, "/api/posts/anything", `{"title":"new"}`, http.StatusOK},
		{http.MethodDelete, "/api/posts/anything", "", http.StatusOK},
		{http.MethodGet, "/api/posts/stats", "", http.StatusOK},
	}
	for _, rr := range requests {
		w := doRequest(t, h, rr.method, rr.path, rr.body, "")
		if w.Code != rr.wantStatus {
			t.Errorf("%s %s status = %d, want %d", rr.method, rr.path, w.Code, rr.wantStatus)
			continue
		}
		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["mock"] != true {
			t.Errorf("%s %s mock = %v, want true", rr.method, rr.path, body["mock"])
		}
	}
}

func TestRouter_DemoModePostOwnerIsRequester(t *testing.T) {
	h := newTestRouter(t, testRouterOptions{})

	w := doRequest(t, h, http.MethodGet, "/api/posts/mock-post-1", "", "bob")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := decodeBody[postEnvelope](t, w); got.Post.UserID != "bob" {
		t.Errorf("user_id = %q, want %q", got.Post.UserID, "bob")
	}

	w = doRequest(t, h, http.MethodPut, "/api/posts/mock-post-1", `{"title":"x"}`, "bob")
	if got := decodeBody[postEnvelope](t, w); got.Post.UserID != "bob" {
		t.Errorf("updated user_id = %q, want %q", got.Post.UserID, "bob")
	}
}

func TestRouter_Users(t *testing.T) {
	h := newTestRouter(t, testRouterOptions{live: true})

	w := doRequest(t, h, http.MethodGet, "/api/users/"+model.DemoUserID, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("demo user status = %d", w.Code)
	}
	if got := decodeBody[userResponse](t, w); got.ID != model.DemoUserID {
		t.Errorf("id = %q, want %q", got.ID, model.DemoUserID)
	}

	if w := doRequest(t, h, http.MethodGet, "/api/users/ghost", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRouter_InvalidUserIDHeader(t *testing.T) {
	h := newTestRouter(t, testRouterOptions{})

	w := doRequest(t, h, http.MethodGet, "/api/posts", "", "not valid!")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodeInvalidUserID {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeInvalidUserID)
	}
	if body["request_id"] == "" {
		t.Error("ルーター経由のエラーにはrequest_idが含まれるべき")
	}
}

func TestRouter_GenerationRateLimit(t *testing.T) {
	h := newTestRouter(t, testRouterOptions{generationPerMin: 2})
	body := `{"prompt":"ai tools","platform":"twitter"}`

	for i := 0; i < 2; i++ {
		if w := doRequest(t, h, http.MethodPost, "/api/generate-text", body, ""); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}

	w := doRequest(t, h, http.MethodPost, "/api/generate-text", body, "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After ヘッダーが設定されるべき")
	}

	// 生成以外のAPIは一般枠で処理される
	if w := doRequest(t, h, http.MethodPost, "/api/validate", `{"content":"x","platform":"twitter"}`, ""); w.Code != http.StatusOK {
		t.Errorf("validate status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := newTestRouter(t, testRouterOptions{corsAllowedOrigin: "https://app.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, testRouterOptions{})

	doRequest(t, h, http.MethodPost, "/api/validate", `{"content":"hello #world","platform":"facebook"}`, "")
	doRequest(t, h, http.MethodPost, "/api/generate-images", `{"prompt":"cats"}`, "")

	w := doRequest(t, h, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	out := w.Body.String()
	for _, name := range []string{
		"socialgen_http_status_total",
		"socialgen_validation_score",
		`socialgen_generations_total{kind="image",platform="instagram"} 1`,
	} {
		if !strings.Contains(out, name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}
