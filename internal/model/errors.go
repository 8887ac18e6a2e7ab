package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, post, import, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeMissingField    = "MISSING_FIELD"
	ErrCodeInvalidPlatform = "INVALID_PLATFORM"
	ErrCodeInvalidStatus   = "INVALID_STATUS"
	ErrCodeInvalidStyle    = "INVALID_STYLE"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeSSRFBlocked     = "SSRF_BLOCKED"
	ErrCodeFetchFailed     = "FETCH_FAILED"
	ErrCodeParseFailed     = "PARSE_FAILED"
	ErrCodeFeedNotDetected = "FEED_NOT_DETECTED"
	ErrCodePostNotFound    = "POST_NOT_FOUND"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeEmptyPatch      = "EMPTY_PATCH"
	ErrCodeInvalidUserID   = "INVALID_USER_ID"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeRequestCanceled = "REQUEST_CANCELED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディ解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewMissingFieldError は必須フィールド未指定エラーを生成する。
func NewMissingFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("必須フィールドが指定されていません: %s", field),
		Category: "validation",
		Action:   fmt.Sprintf("%s を指定してください。", field),
	}
}

// NewInvalidPlatformError は未対応プラットフォームエラーを生成する。
func NewInvalidPlatformError(platform string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPlatform,
		Message:  fmt.Sprintf("未対応のプラットフォームです: %s", platform),
		Category: "validation",
		Action:   "linkedin、twitter、instagram、facebook、tiktok のいずれかを指定してください。",
	}
}

// NewInvalidStatusError は無効な投稿状態エラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効な投稿状態です: %s", status),
		Category: "validation",
		Action:   "draft、scheduled、published のいずれかを指定してください。",
	}
}

// NewInvalidStyleError は無効な画像スタイルエラーを生成する。
func NewInvalidStyleError(style string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStyle,
		Message:  fmt.Sprintf("無効な画像スタイルです: %s", style),
		Category: "validation",
		Action:   "professional、creative、minimalist、vibrant のいずれかを指定してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "import",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewParseFailedError はパース失敗エラーを生成する。
func NewParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "フィードの解析に失敗しました。",
		Category: "import",
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
	}
}

// NewFeedNotDetectedError はフィード未検出エラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("指定されたURLからRSS/Atomフィードを検出できませんでした: %s", url),
		Category: "import",
		Action:   "RSS/AtomフィードのURLを直接入力するか、フィードが公開されているページのURLを確認してください。",
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", postID),
		Category: "post",
		Action:   "投稿IDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("ユーザーが見つかりません: %s", userID),
		Category: "post",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewEmptyPatchError は更新フィールドが指定されていない場合のエラーを生成する。
func NewEmptyPatchError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyPatch,
		Message:  "更新するフィールドが指定されていません。",
		Category: "validation",
		Action:   "変更したいフィールドを1つ以上指定してください。",
	}
}

// NewInvalidUserIDError はX-User-IDヘッダーの形式エラーを生成する。
func NewInvalidUserIDError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUserID,
		Message:  "ユーザーIDの形式が正しくありません。",
		Category: "validation",
		Action:   "英数字・ハイフン・アンダースコアのみ、64文字以内で指定してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewRequestCanceledError はクライアントが応答前に接続を閉じたことを表すエラーを生成する。
func NewRequestCanceledError() *APIError {
	return &APIError{
		Code:     ErrCodeRequestCanceled,
		Message:  "リクエストがキャンセルされました。",
		Category: "system",
		Action:   "必要であれば再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
