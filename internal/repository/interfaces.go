// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/carman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error
}

// RefreshTokenRepository はリフレッシュトークンの永続化インターフェース。
type RefreshTokenRepository interface {
	// Create はリフレッシュトークンを作成する。
	Create(ctx context.Context, token *model.RefreshToken) error

	// FindByID は指定IDのトークンを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.RefreshToken, error)

	// DeleteByID は指定IDのトークンを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByUserID は指定ユーザーの全トークンを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// CarRepository は車両データの永続化インターフェース。
type CarRepository interface {
	// FindByID は指定IDの車両を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Car, error)

	// List は取得条件に従って車両一覧をページング付きで返す。
	// queryのCategoryがCategoryAllまたは空の場合は全カテゴリを対象とする。
	List(ctx context.Context, query model.CarListQuery) (*model.CarPage, error)

	// Create は車両を作成する。
	Create(ctx context.Context, car *model.Car) error

	// Update は車両情報を全項目更新する。対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, car *model.Car) (bool, error)

	// DeleteByID は指定IDの車両を削除する。対象が存在しない場合はfalseを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}
