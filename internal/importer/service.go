// Package importer はRSS/Atomフィードの記事から投稿の下書きを作成する。
//
// 入力URLがフィードでなくHTMLページの場合は、headで告知されている
// フィードを検出して取り込む。外部へのアクセスは全てSSRF防止付きの
// HTTPクライアントを経由する。
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"github.com/notho/socialgen/internal/generation"
	"github.com/notho/socialgen/internal/model"
	"github.com/notho/socialgen/internal/post"
	"github.com/notho/socialgen/internal/security"
)

const (
	// DefaultLimit は取り込む記事数の既定値。
	DefaultLimit = 5
	// MaxLimit は取り込む記事数の上限。
	MaxLimit = 20

	// ObjectiveRepurpose は取り込んだ下書きに設定する目的。
	ObjectiveRepurpose = "repurpose"

	userAgent = "socialgen/1.0 (+feed importer)"
)

// 取り込み失敗の理由（メトリクスのラベル）
const (
	reasonInvalidURL  = "invalid_url"
	reasonBlocked     = "blocked"
	reasonFetch       = "fetch"
	reasonNotDetected = "not_detected"
	reasonParse       = "parse"
	reasonStore       = "store"
)

// PostCreator は下書きの保存先。post.Serviceが実装する。
type PostCreator interface {
	Create(ctx context.Context, in post.CreateInput) (post.Result[*model.Post], error)
	DemoMode() bool
}

// ImportMetrics は取り込み結果の記録先。
type ImportMetrics interface {
	RecordPostsImported(count int)
	RecordImportFailure(reason string)
	RecordImportLatency(duration time.Duration)
}

// Config は取り込み処理の設定。
type Config struct {
	Timeout time.Duration
	MaxSize int64
}

// Request は取り込みの入力。
type Request struct {
	UserID   string
	URL      string
	Platform model.Platform
	Limit    int
}

// Result は取り込み結果。
type Result struct {
	FeedURL   string
	FeedTitle string
	Posts     []*model.Post
	Mode      post.Mode
}

// Service はフィードの取り込みを行う。
type Service struct {
	guard     security.SSRFGuardService
	sanitizer security.TextSanitizer
	posts     PostCreator
	metrics   ImportMetrics
	config    Config
	client    *http.Client
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilでもよい。
func NewService(
	guard security.SSRFGuardService,
	sanitizer security.TextSanitizer,
	posts PostCreator,
	metrics ImportMetrics,
	cfg Config,
) *Service {
	return &Service{
		guard:     guard,
		sanitizer: sanitizer,
		posts:     posts,
		metrics:   metrics,
		config:    cfg,
		client:    guard.NewSafeClient(cfg.Timeout),
	}
}

// importError は失敗理由とAPIエラーの組。
type importError struct {
	reason string
	apiErr *model.APIError
}

func (e *importError) Error() string { return e.apiErr.Error() }
func (e *importError) Unwrap() error { return e.apiErr }

func fail(reason string, apiErr *model.APIError) error {
	return &importError{reason: reason, apiErr: apiErr}
}

// Import はURLからフィードを検出・取得し、先頭から最大Limit件の記事を下書きとして保存する。
// フロー: 入力検証 → SSRF検証 → 取得 → (HTMLならフィード検出 → 再取得) → パース → 下書き作成
func (s *Service) Import(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	res, err := s.doImport(ctx, req)

	if s.metrics != nil {
		s.metrics.RecordImportLatency(time.Since(start))
		var ie *importError
		switch {
		case errors.As(err, &ie):
			s.metrics.RecordImportFailure(ie.reason)
		case err == nil:
			s.metrics.RecordPostsImported(len(res.Posts))
		}
	}

	if err != nil {
		slog.Warn("feed import failed",
			slog.String("url", req.URL),
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	slog.Info("feed imported",
		slog.String("url", req.URL),
		slog.String("feed_url", res.FeedURL),
		slog.String("user_id", req.UserID),
		slog.Int("posts", len(res.Posts)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return res, nil
}

func (s *Service) doImport(ctx context.Context, req Request) (*Result, error) {
	if req.UserID == "" {
		return nil, model.NewMissingFieldError("user_id")
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, model.NewMissingFieldError("url")
	}
	if req.Platform == "" {
		return nil, model.NewMissingFieldError("platform")
	}
	spec, ok := model.LookupPlatform(req.Platform)
	if !ok {
		return nil, model.NewInvalidPlatformError(string(req.Platform))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	feedURL := strings.TrimSpace(req.URL)
	body, contentType, err := s.fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	if !IsDirectFeed(contentType, body) {
		if !IsHTML(contentType) {
			return nil, fail(reasonNotDetected, model.NewFeedNotDetectedError(feedURL))
		}
		link, ok := SelectBestFeed(ParseFeedLinks(body, feedURL), feedURL)
		if !ok {
			return nil, fail(reasonNotDetected, model.NewFeedNotDetectedError(feedURL))
		}
		feedURL = link.URL
		body, _, err = s.fetch(ctx, feedURL)
		if err != nil {
			return nil, err
		}
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fail(reasonParse, model.NewParseFailedError())
	}

	result := &Result{
		FeedURL:   feedURL,
		FeedTitle: s.sanitizer.PlainText(parsed.Title),
		Posts:     make([]*model.Post, 0, min(limit, len(parsed.Items))),
		Mode:      post.ModeLive,
	}
	if s.posts.DemoMode() {
		result.Mode = post.ModeMock
	}

	for _, item := range parsed.Items {
		if len(result.Posts) >= limit {
			break
		}
		in, ok := s.draftFromItem(item, req.UserID, spec)
		if !ok {
			continue
		}
		created, err := s.posts.Create(ctx, in)
		if err != nil {
			var apiErr *model.APIError
			if errors.As(err, &apiErr) {
				slog.Debug("skipping feed item",
					slog.String("link", item.Link),
					slog.String("error", apiErr.Error()),
				)
				continue
			}
			return nil, fail(reasonStore, model.NewInternalError())
		}
		result.Posts = append(result.Posts, created.Data)
	}

	return result, nil
}

// fetch はURLの検証と取得を行い、ボディ（MaxSizeまで）とContent-Typeを返す。
func (s *Service) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := s.guard.ValidateURL(rawURL); err != nil {
		if errors.Is(err, security.ErrBlockedURL) {
			return nil, "", fail(reasonBlocked, model.NewSSRFBlockedError())
		}
		return nil, "", fail(reasonInvalidURL, model.NewInvalidURLError(rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fail(reasonInvalidURL, model.NewInvalidURLError(rawURL))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.9, */*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fail(reasonFetch, model.NewFetchFailedError("接続に失敗しました"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fail(reasonFetch, model.NewFetchFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxSize))
	if err != nil {
		return nil, "", fail(reasonFetch, model.NewFetchFailedError("レスポンスの読み取りに失敗しました"))
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// draftFromItem はフィード記事を下書きの入力に変換する。
// 本文は要約とリンクからなり、プラットフォームの文字数上限に収める。
// 本文にできる内容がない記事はfalseを返す。
func (s *Service) draftFromItem(item *gofeed.Item, userID string, spec model.PlatformSpec) (post.CreateInput, bool) {
	if item == nil {
		return post.CreateInput{}, false
	}

	link := strings.TrimSpace(item.Link)
	if link == "" && isHTTPURL(item.GUID) {
		link = item.GUID
	}

	title := s.sanitizer.PlainText(item.Title)
	summary := s.sanitizer.Summary(item.Description)
	if summary == "" {
		summary = s.sanitizer.Summary(item.Content)
	}
	if summary == "" {
		summary = title
	}

	content := composeContent(summary, link, spec.MaxCharacters)
	if strings.TrimSpace(content) == "" {
		return post.CreateInput{}, false
	}

	return post.CreateInput{
		UserID:    userID,
		Title:     title,
		Content:   content,
		Platform:  spec.Platform,
		Status:    model.PostStatusDraft,
		ImageURL:  s.firstImage(item),
		Prompt:    link,
		Objective: ObjectiveRepurpose,
	}, true
}

// composeContent は要約の後にリンクを置いた本文を作る。
// 上限を超える場合はリンクを残して要約側を切り詰める。
func composeContent(summary, link string, limit int) string {
	if link == "" {
		return generation.Truncate(summary, limit)
	}
	if summary == "" {
		return generation.Truncate(link, limit)
	}

	const sep = "\n\n"
	room := limit - utf8.RuneCountInString(link) - utf8.RuneCountInString(sep)
	if room <= 3 {
		return generation.Truncate(link, limit)
	}
	return generation.Truncate(summary, room) + sep + link
}

// firstImage は記事の画像URLを返す。SSRF検証を通らないURLは使わない。
func (s *Service) firstImage(item *gofeed.Item) string {
	candidates := make([]string, 0, 1+len(item.Enclosures))
	if item.Image != nil {
		candidates = append(candidates, item.Image.URL)
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(strings.ToLower(enc.Type), "image/") {
			candidates = append(candidates, enc.URL)
		}
	}

	for _, u := range candidates {
		if u != "" && s.guard.ValidateURL(u) == nil {
			return u
		}
	}
	return ""
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
