package handler

import (
	"net/http"

	"github.com/notho/socialgen/internal/model"
)

// StatusInfo はUIのデモモード表示に使う稼働情報。
type StatusInfo struct {
	DemoMode bool
	Driver   string
}

type statusResponse struct {
	DemoMode bool   `json:"demoMode"`
	Driver   string `json:"driver,omitempty"`
}

type platformsResponse struct {
	Platforms []model.PlatformSpec `json:"platforms"`
}

// SystemHandler はプラットフォーム一覧・稼働状態・ヘルスチェックを返す。
type SystemHandler struct {
	status StatusInfo
}

// NewSystemHandler はSystemHandlerを生成する。
func NewSystemHandler(status StatusInfo) *SystemHandler {
	return &SystemHandler{status: status}
}

// Platforms は対応プラットフォームの一覧を返す。
// GET /api/platforms
func (h *SystemHandler) Platforms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, platformsResponse{Platforms: model.Platforms()})
}

// Status はデモモードかどうかと使用中のDBドライバーを返す。
// GET /api/status
func (h *SystemHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{DemoMode: h.status.DemoMode}
	if !h.status.DemoMode {
		resp.Driver = h.status.Driver
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health はヘルスチェック。
// GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
