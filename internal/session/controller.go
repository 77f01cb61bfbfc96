package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/carman/internal/adminclient"
	"github.com/hitoshi/carman/internal/model"
)

// loginFailureFallback は構造化エラーもメッセージも得られなかった場合の表示文言。
const loginFailureFallback = "ログインに失敗しました。しばらく待ってから再度お試しください。"

// AuthAPI はセッションコントローラーが利用する認証APIのインターフェース。
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*model.Identity, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*model.Identity, error)
}

// Controller はログイン・ログアウト・セッション復元を調停する。
// UIはこのコントローラーを介してのみセッション状態を操作する。
type Controller struct {
	store  *Store
	client AuthAPI
	logger *slog.Logger
}

// NewController はControllerを生成する。loggerはnilの場合slog.Defaultを使う。
func NewController(store *Store, client AuthAPI, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:  store,
		client: client,
		logger: logger,
	}
}

// Store はコントローラーが管理するセッションストアを返す。
func (c *Controller) Store() *Store {
	return c.store
}

// Login はメールアドレスとパスワードでログインする。
// 失敗時はストアにエラーメッセージを記録した上でエラーを返す。
// メッセージは構造化エラーボディ→トランスポートエラー→汎用文言の順で決める。
func (c *Controller) Login(ctx context.Context, email, password string) (*model.Identity, error) {
	c.store.LoginStart()

	identity, err := c.client.Login(ctx, email, password)
	if err != nil {
		c.store.LoginFailure(loginFailureMessage(err))
		return nil, err
	}

	c.store.LoginSuccess(identity)
	return identity, nil
}

// Logout はセッションをクリアする。
// サーバー側のセッション破棄はベストエフォートで、失敗してもログアウトは成立する。
func (c *Controller) Logout(ctx context.Context) {
	if err := c.client.Logout(ctx); err != nil {
		c.logger.Warn("server-side logout failed", slog.String("error", err.Error()))
	}
	c.store.Clear()
}

// RestoreSession は既存のCookieからセッションの復元を試みる。
// いかなる失敗も「未ログイン」として扱い、エラーをUIに伝播しない。
// 冪等であり、起動時や画面エントリのたびに呼んでも安全。
func (c *Controller) RestoreSession(ctx context.Context) {
	identity, err := c.client.Profile(ctx)
	if err != nil {
		c.store.Clear()
		return
	}
	c.store.SetIdentity(identity)
}

// loginFailureMessage はログイン失敗時の表示メッセージを決定する。
func loginFailureMessage(err error) string {
	var statusErr *adminclient.APIStatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return loginFailureFallback
}
