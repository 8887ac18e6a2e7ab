package handler

import (
	"net/http"

	"github.com/notho/socialgen/internal/model"
	"github.com/notho/socialgen/internal/validation"
)

// ValidationMetrics はバリデーションスコアの記録先。
type ValidationMetrics interface {
	RecordValidationScore(score int)
}

// ValidationHandler は投稿本文の検証を行うHTTPハンドラー。
type ValidationHandler struct {
	metrics ValidationMetrics
}

// NewValidationHandler はValidationHandlerを生成する。metricsはnilでもよい。
func NewValidationHandler(metrics ValidationMetrics) *ValidationHandler {
	return &ValidationHandler{metrics: metrics}
}

type validateRequest struct {
	Content  string `json:"content"`
	Platform string `json:"platform"`
	HasImage bool   `json:"hasImage"`
}

// Validate は本文をプラットフォームのルールで検証しスコアを返す。
// POST /api/validate
func (h *ValidationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Platform == "" {
		writeAPIErrorResponse(w, r, http.StatusBadRequest, model.NewMissingFieldError("platform"))
		return
	}
	platform := model.Platform(req.Platform)
	if !platform.IsValid() {
		writeAPIErrorResponse(w, r, http.StatusBadRequest, model.NewInvalidPlatformError(req.Platform))
		return
	}

	report := validation.Validate(req.Content, platform, req.HasImage, model.CharacterLimits())
	if h.metrics != nil {
		h.metrics.RecordValidationScore(report.Score)
	}

	writeJSON(w, http.StatusOK, report)
}
