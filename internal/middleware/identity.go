// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/notho/socialgen/internal/model"
)

// UserIDHeader は現在のユーザーIDを指定するリクエストヘッダー。
// 認証は行わないため、値はクライアントの申告をそのまま信頼する。
const UserIDHeader = "X-User-ID"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// NewIdentityMiddleware はX-User-IDヘッダーから現在のユーザーIDを決定し、
// リクエストコンテキストに注入するミドルウェアを返す。
// ヘッダーがない場合はdefaultUserIDを使う。形式が不正な場合は400を返す。
func NewIdentityMiddleware(defaultUserID string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(UserIDHeader)
			if userID == "" {
				userID = defaultUserID
			} else if !userIDPattern.MatchString(userID) {
				WriteErrorResponse(w, r, http.StatusBadRequest, model.NewInvalidUserIDError())
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// IdentityMiddlewareを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
