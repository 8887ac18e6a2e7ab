package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/notho/socialgen/internal/generation"
	"github.com/notho/socialgen/internal/model"
)

// GenerationServiceInterface は生成ハンドラーが必要とするサービスインターフェース。
type GenerationServiceInterface interface {
	GenerateText(ctx context.Context, req generation.TextRequest) (*generation.TextResult, error)
	GenerateImages(ctx context.Context, req generation.ImageRequest) ([]generation.Image, error)
}

// GenerationHandler はテキスト・画像生成のHTTPハンドラー。
type GenerationHandler struct {
	service GenerationServiceInterface
}

// NewGenerationHandler はGenerationHandlerを生成する。
func NewGenerationHandler(service GenerationServiceInterface) *GenerationHandler {
	return &GenerationHandler{service: service}
}

type generateTextRequest struct {
	Prompt    string `json:"prompt"`
	Platform  string `json:"platform"`
	Objective string `json:"objective"`
	Tone      string `json:"tone"`
}

type generateTextResponse struct {
	Text           string `json:"text"`
	Platform       string `json:"platform"`
	Objective      string `json:"objective"`
	Tone           string `json:"tone"`
	CharacterCount int    `json:"characterCount"`
	MaxCharacters  int    `json:"maxCharacters"`
}

// textErrorResponse はテキスト生成のエラーレスポンス。
type textErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type generateImagesRequest struct {
	Prompt   string `json:"prompt"`
	Style    string `json:"style"`
	Platform string `json:"platform"`
}

type imageResponse struct {
	ID         string           `json:"id"`
	URL        string           `json:"url"`
	Prompt     string           `json:"prompt"`
	Style      string           `json:"style"`
	Platform   string           `json:"platform"`
	Dimensions model.Dimensions `json:"dimensions"`
}

type generateImagesResponse struct {
	Success bool            `json:"success"`
	Images  []imageResponse `json:"images"`
}

// imageErrorResponse は画像生成のエラーレスポンス。
type imageErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// GenerateText はプロンプトから投稿テキストを生成する。
// POST /api/generate-text
func (h *GenerationHandler) GenerateText(w http.ResponseWriter, r *http.Request) {
	var req generateTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiErr := model.NewInvalidRequestError()
		writeJSON(w, http.StatusBadRequest, textErrorResponse{Error: apiErr.Message, Code: apiErr.Code})
		return
	}

	result, err := h.service.GenerateText(r.Context(), generation.TextRequest{
		Prompt:    req.Prompt,
		Platform:  model.Platform(req.Platform),
		Objective: req.Objective,
		Tone:      req.Tone,
	})
	if err != nil {
		apiErr, status := resolveError(r, err)
		writeJSON(w, status, textErrorResponse{Error: apiErr.Message, Code: apiErr.Code})
		return
	}

	writeJSON(w, http.StatusOK, generateTextResponse{
		Text:           result.Text,
		Platform:       string(result.Platform),
		Objective:      result.Objective,
		Tone:           result.Tone,
		CharacterCount: result.CharacterCount,
		MaxCharacters:  result.MaxCharacters,
	})
}

// GenerateImages はプロンプトからプレースホルダー画像を生成する。
// POST /api/generate-images
func (h *GenerationHandler) GenerateImages(w http.ResponseWriter, r *http.Request) {
	var req generateImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiErr := model.NewInvalidRequestError()
		writeJSON(w, http.StatusBadRequest, imageErrorResponse{Error: apiErr.Message, Code: apiErr.Code})
		return
	}

	images, err := h.service.GenerateImages(r.Context(), generation.ImageRequest{
		Prompt:   req.Prompt,
		Style:    req.Style,
		Platform: model.Platform(req.Platform),
	})
	if err != nil {
		apiErr, status := resolveError(r, err)
		writeJSON(w, status, imageErrorResponse{Error: apiErr.Message, Code: apiErr.Code})
		return
	}

	resp := generateImagesResponse{Success: true, Images: make([]imageResponse, len(images))}
	for i, img := range images {
		resp.Images[i] = imageResponse{
			ID:         img.ID,
			URL:        img.URL,
			Prompt:     img.Prompt,
			Style:      img.Style,
			Platform:   string(img.Platform),
			Dimensions: img.Dimensions,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
