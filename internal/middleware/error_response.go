package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/notho/socialgen/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// request_idはchiのRequestIDミドルウェアを通過した場合のみ含まれる。
type ErrorResponseBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// ミドルウェアとハンドラーの両方から使う。
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *model.APIError) {
	body := ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
	if r != nil {
		body.RequestID = chimw.GetReqID(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode error response", slog.String("error", err.Error()))
	}
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, http.StatusInternalServerError, model.NewInternalError())
}
