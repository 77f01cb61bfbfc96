// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, inventory, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeRefreshFailed      = "REFRESH_FAILED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeCarNotFound        = "CAR_NOT_FOUND"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInvalidPage        = "INVALID_PAGE"
	ErrCodeImageBlocked       = "IMAGE_BLOCKED"
	ErrCodeImageFetchFailed   = "IMAGE_FETCH_FAILED"
)

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "管理者アカウントの認証情報を確認してください。",
	}
}

// NewTokenExpiredError はアクセストークン失効エラーを生成する。
// このエラーに対応する403レスポンスがクライアント側のリフレッシュ再試行を起動する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "セッションの有効期限が切れています。",
		Category: "auth",
		Action:   "セッションを更新するか、再度ログインしてください。",
	}
}

// NewRefreshFailedError はリフレッシュトークン検証失敗エラーを生成する。
func NewRefreshFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeRefreshFailed,
		Message:  "セッションを更新できませんでした。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewCarNotFoundError は車両未検出エラーを生成する。
func NewCarNotFoundError(carID string) *APIError {
	return &APIError{
		Code:     ErrCodeCarNotFound,
		Message:  fmt.Sprintf("指定された車両が見つかりません: %s", carID),
		Category: "inventory",
		Action:   "車両IDを確認してください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を修正して再度お試しください。",
	}
}

// NewInvalidPageError は無効なページ番号エラーを生成する。
func NewInvalidPageError(page int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPage,
		Message:  fmt.Sprintf("無効なページ番号です: %d", page),
		Category: "validation",
		Action:   "1以上のページ番号を指定してください。",
	}
}

// NewImageBlockedError は画像URLがセキュリティポリシーでブロックされた場合のエラーを生成する。
func NewImageBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeImageBlocked,
		Message:  "セキュリティポリシーにより、指定された画像URLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトの画像URLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewImageFetchFailedError は画像取得失敗エラーを生成する。
func NewImageFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImageFetchFailed,
		Message:  fmt.Sprintf("画像の取得に失敗しました: %s", reason),
		Category: "inventory",
		Action:   "画像URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}
