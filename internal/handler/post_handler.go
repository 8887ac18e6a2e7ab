package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/notho/socialgen/internal/middleware"
	"github.com/notho/socialgen/internal/model"
	"github.com/notho/socialgen/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
// 戻り値のboolはモックデータかどうかを表す。
type PostServiceInterface interface {
	CreatePost(ctx context.Context, in post.CreateInput) (*postResponse, bool, error)
	ListPosts(ctx context.Context, userID string, limit int) ([]postResponse, bool, error)
	GetPost(ctx context.Context, id string) (*postResponse, bool, error)
	UpdatePost(ctx context.Context, id string, patch model.PostPatch) (*postResponse, bool, error)
	DeletePost(ctx context.Context, id string) (string, bool, error)
	PostStats(ctx context.Context, userID string) (*postStatsResponse, bool, error)
}

// PostHandler は投稿CRUDのHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// postResponse は投稿のAPIレスポンス。
type postResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Platform    string     `json:"platform"`
	Status      string     `json:"status"`
	ImageURL    string     `json:"image_url,omitempty"`
	Prompt      string     `json:"prompt,omitempty"`
	Objective   string     `json:"objective,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// postStatsResponse は投稿集計のAPIレスポンス。
type postStatsResponse struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByPlatform map[string]int `json:"by_platform"`
}

type postEnvelope struct {
	Post *postResponse `json:"post"`
	Mock bool          `json:"mock"`
}

type postListEnvelope struct {
	Posts []postResponse `json:"posts"`
	Mock  bool           `json:"mock"`
}

type postDeleteEnvelope struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
	Mock    bool   `json:"mock"`
}

type postStatsEnvelope struct {
	Stats *postStatsResponse `json:"stats"`
	Mock  bool               `json:"mock"`
}

// createPostRequest は投稿作成リクエストのボディ。
type createPostRequest struct {
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Platform    string     `json:"platform"`
	Status      string     `json:"status"`
	ImageURL    string     `json:"image_url"`
	Prompt      string     `json:"prompt"`
	Objective   string     `json:"objective"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	PublishedAt *time.Time `json:"published_at"`
}

// optionalTime は省略・null・値の3状態を区別する日時フィールド。
type optionalTime struct {
	Set   bool
	Value *time.Time
}

// UnmarshalJSON はフィールドが存在したことを記録する。nullの場合Valueはnilのまま。
func (o *optionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// updatePostRequest は投稿更新リクエストのボディ。省略したフィールドは変更しない。
// scheduled_at, published_atはnullを指定すると未設定に戻る。
type updatePostRequest struct {
	Title       *string      `json:"title"`
	Content     *string      `json:"content"`
	Platform    *string      `json:"platform"`
	Status      *string      `json:"status"`
	ImageURL    *string      `json:"image_url"`
	Prompt      *string      `json:"prompt"`
	Objective   *string      `json:"objective"`
	ScheduledAt optionalTime `json:"scheduled_at"`
	PublishedAt optionalTime `json:"published_at"`
}

func (req updatePostRequest) toPatch() model.PostPatch {
	patch := model.PostPatch{
		Title:            req.Title,
		Content:          req.Content,
		ImageURL:         req.ImageURL,
		Prompt:           req.Prompt,
		Objective:        req.Objective,
		ScheduledAt:      req.ScheduledAt.Value,
		PublishedAt:      req.PublishedAt.Value,
		ClearScheduledAt: req.ScheduledAt.Set && req.ScheduledAt.Value == nil,
		ClearPublishedAt: req.PublishedAt.Set && req.PublishedAt.Value == nil,
	}
	if req.Platform != nil {
		p := model.Platform(*req.Platform)
		patch.Platform = &p
	}
	if req.Status != nil {
		s := model.PostStatus(*req.Status)
		patch.Status = &s
	}
	return patch
}

// requestUserID はクエリのuserId（またはuser_id）を返す。
// 指定がない場合はリクエストのユーザーIDを使う。
func requestUserID(r *http.Request) string {
	q := r.URL.Query()
	if id := q.Get("userId"); id != "" {
		return id
	}
	if id := q.Get("user_id"); id != "" {
		return id
	}
	id, _ := middleware.UserIDFromContext(r.Context())
	return id
}

// ownerContext はデモモードのサンプル投稿を現在のユーザーの投稿として返すためのコンテキストを作る。
func ownerContext(r *http.Request) context.Context {
	id, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		return r.Context()
	}
	return post.ContextWithOwner(r.Context(), id)
}

// ListPosts はユーザーの投稿を新しい順に返す。
// GET /api/posts?userId=&limit=
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeAPIErrorResponse(w, r, http.StatusBadRequest, model.NewInvalidRequestError())
			return
		}
		limit = n
	}

	posts, mock, err := h.service.ListPosts(r.Context(), requestUserID(r), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if posts == nil {
		posts = []postResponse{}
	}

	writeJSON(w, http.StatusOK, postListEnvelope{Posts: posts, Mock: mock})
}

// CreatePost は投稿を作成する。
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := req.UserID
	if userID == "" {
		userID, _ = middleware.UserIDFromContext(r.Context())
	}

	p, mock, err := h.service.CreatePost(r.Context(), post.CreateInput{
		UserID:      userID,
		Title:       req.Title,
		Content:     req.Content,
		Platform:    model.Platform(req.Platform),
		Status:      model.PostStatus(req.Status),
		ImageURL:    req.ImageURL,
		Prompt:      req.Prompt,
		Objective:   req.Objective,
		ScheduledAt: req.ScheduledAt,
		PublishedAt: req.PublishedAt,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, postEnvelope{Post: p, Mock: mock})
}

// GetPost は指定IDの投稿を返す。
// GET /api/posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	p, mock, err := h.service.GetPost(ownerContext(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, postEnvelope{Post: p, Mock: mock})
}

// UpdatePost は投稿を部分更新する。
// PUT /api/posts/{id}
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var req updatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, mock, err := h.service.UpdatePost(ownerContext(r), chi.URLParam(r, "id"), req.toPatch())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, postEnvelope{Post: p, Mock: mock})
}

// DeletePost は投稿を削除する。
// DELETE /api/posts/{id}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, mock, err := h.service.DeletePost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, postDeleteEnvelope{ID: id, Deleted: true, Mock: mock})
}

// PostStats はユーザーの投稿数を状態・プラットフォーム別に返す。
// GET /api/posts/stats?userId=
func (h *PostHandler) PostStats(w http.ResponseWriter, r *http.Request) {
	stats, mock, err := h.service.PostStats(r.Context(), requestUserID(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, postStatsEnvelope{Stats: stats, Mock: mock})
}
