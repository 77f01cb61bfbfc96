// Package auth はパスワード認証、アクセストークン発行、リフレッシュトークン管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/carman/internal/model"
	"github.com/hitoshi/carman/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	RefreshTokenTTL time.Duration // リフレッシュトークンの有効期間
}

// Credentials はログイン時に発行されるトークンの組。
// アクセストークンは短命のJWT、リフレッシュトークンはDBに永続化された不透明なID。
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Identity     model.Identity
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	issuer    *TokenIssuer
	userRepo  repository.UserRepository
	tokenRepo repository.RefreshTokenRepository
	config    ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	issuer *TokenIssuer,
	userRepo repository.UserRepository,
	tokenRepo repository.RefreshTokenRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		issuer:    issuer,
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		config:    config,
	}
}

// Login はメールアドレスとパスワードを検証し、トークンの組を発行する。
// 認証情報が一致しない場合はAPIError（INVALID_CREDENTIALS）を返す。
// ユーザーが存在しない場合もパスワード不一致と同じエラーを返す（存在の秘匿）。
func (s *Service) Login(ctx context.Context, email, password string) (*Credentials, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !VerifyPassword(user.PasswordHash, password) {
		return nil, model.NewInvalidCredentialsError()
	}

	creds, err := s.issueCredentials(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role),
	)
	return creds, nil
}

// Refresh はリフレッシュトークンを検証し、新しいトークンの組を発行する。
// 使用されたリフレッシュトークンは破棄される（ローテーション）。
// トークンが無効・期限切れの場合はAPIError（REFRESH_FAILED）を返す。
func (s *Service) Refresh(ctx context.Context, refreshTokenID string) (*Credentials, error) {
	if refreshTokenID == "" {
		return nil, model.NewRefreshFailedError()
	}

	token, err := s.tokenRepo.FindByID(ctx, refreshTokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	if token == nil {
		return nil, model.NewRefreshFailedError()
	}

	user, err := s.userRepo.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewRefreshFailedError()
	}

	// 使用済みトークンを破棄してから新しい組を発行する
	if err := s.tokenRepo.DeleteByID(ctx, refreshTokenID); err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	creds, err := s.issueCredentials(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("session refreshed", slog.String("user_id", user.ID))
	return creds, nil
}

// Logout はリフレッシュトークンを破棄する。
// トークンが未指定・無効でもエラーにしない（冪等）。
func (s *Service) Logout(ctx context.Context, refreshTokenID string) error {
	if refreshTokenID == "" {
		return nil
	}

	if err := s.tokenRepo.DeleteByID(ctx, refreshTokenID); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// VerifyAccessToken はアクセストークンを検証し、対応するIdentityを返す。
func (s *Service) VerifyAccessToken(token string) (*model.Identity, error) {
	claims, err := s.issuer.ParseAndValidate(token)
	if err != nil {
		return nil, err
	}
	return &model.Identity{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}

// issueCredentials はアクセストークンとリフレッシュトークンの組を発行する。
func (s *Service) issueCredentials(ctx context.Context, user *model.User) (*Credentials, error) {
	access, err := s.issuer.Generate(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshID, err := generateTokenID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token ID: %w", err)
	}

	refresh := &model.RefreshToken{
		ID:        refreshID,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.config.RefreshTokenTTL),
		CreatedAt: time.Now(),
	}
	if err := s.tokenRepo.Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &Credentials{
		AccessToken:  access,
		RefreshToken: refreshID,
		Identity: model.Identity{
			ID:    user.ID,
			Email: user.Email,
			Role:  user.Role,
		},
	}, nil
}

// generateTokenID は暗号的に安全なリフレッシュトークンIDを生成する。
func generateTokenID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
