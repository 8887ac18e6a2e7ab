package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/notho/socialgen/internal/middleware"
	"github.com/notho/socialgen/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, r, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, status := resolveError(r, err)
	writeAPIErrorResponse(w, r, status, apiErr)
}

// statusClientClosedRequest はクライアントが応答前に切断したことを表す（nginx互換の非標準コード）。
const statusClientClosedRequest = 499

// resolveError はエラーをAPIErrorとHTTPステータスに解決する。
// クライアントの切断はサーバー障害ではないためInfoで記録する。
// それ以外のAPIError以外は内部エラーとしてログに記録する。
func resolveError(r *http.Request, err error) (*model.APIError, int) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr, mapAPIErrorToHTTPStatus(apiErr)
	}

	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		slog.Info("client closed request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		return model.NewRequestCanceledError(), statusClientClosedRequest
	}

	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	return model.NewInternalError(), http.StatusInternalServerError
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest,
		model.ErrCodeMissingField,
		model.ErrCodeInvalidPlatform,
		model.ErrCodeInvalidStatus,
		model.ErrCodeInvalidStyle,
		model.ErrCodeInvalidURL,
		model.ErrCodeEmptyPatch,
		model.ErrCodeInvalidUserID:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case model.ErrCodeFeedNotDetected, model.ErrCodeParseFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodePostNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeRequestCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON はリクエストボディをvにデコードする。
// 失敗した場合はINVALID_REQUESTを書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIErrorResponse(w, r, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}
