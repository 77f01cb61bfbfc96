// Package model はドメインモデルを定義する。
package model

import "time"

// ユーザーロール。管理画面にアクセスできるのはRoleAdminのみ。
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// User は管理サービスの利用ユーザーを表す。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は認証済みユーザーのうちクライアントに公開する部分を表す。
// セッションストアが保持する唯一のユーザー情報で、
// ログイン・リフレッシュ成功時に全体が置き換えられる。
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsAdmin は管理者ロールかどうかを返す。
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// RefreshToken はサーバーに永続化されるリフレッシュトークンを表す。
// アクセストークン（短命JWT）の再発行に使用され、使用のたびにローテーションされる。
type RefreshToken struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
