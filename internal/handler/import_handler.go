package handler

import (
	"context"
	"net/http"

	"github.com/notho/socialgen/internal/importer"
	"github.com/notho/socialgen/internal/middleware"
	"github.com/notho/socialgen/internal/model"
)

// ImportServiceInterface はフィード取り込みハンドラーが必要とするサービスインターフェース。
type ImportServiceInterface interface {
	ImportFeed(ctx context.Context, req importer.Request) (*importResponse, error)
}

// ImportHandler はフィード取り込みのHTTPハンドラー。
type ImportHandler struct {
	service ImportServiceInterface
}

// NewImportHandler はImportHandlerを生成する。
func NewImportHandler(service ImportServiceInterface) *ImportHandler {
	return &ImportHandler{service: service}
}

type importRequest struct {
	UserID   string `json:"user_id"`
	URL      string `json:"url"`
	Platform string `json:"platform"`
	Limit    int    `json:"limit"`
}

// importResponse は取り込み結果のAPIレスポンス。
type importResponse struct {
	FeedURL   string         `json:"feed_url"`
	FeedTitle string         `json:"feed_title"`
	Posts     []postResponse `json:"posts"`
	Count     int            `json:"count"`
	Mock      bool           `json:"mock"`
}

// ImportPosts はフィードの記事を下書き投稿として取り込む。
// POST /api/posts/import
func (h *ImportHandler) ImportPosts(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := req.UserID
	if userID == "" {
		userID, _ = middleware.UserIDFromContext(r.Context())
	}

	resp, err := h.service.ImportFeed(r.Context(), importer.Request{
		UserID:   userID,
		URL:      req.URL,
		Platform: model.Platform(req.Platform),
		Limit:    req.Limit,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}
