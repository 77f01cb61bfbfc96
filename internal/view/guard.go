// Package view はセッション状態に基づくトップレベル画面の出し分けを提供する。
package view

import (
	"context"
	"sync"

	"github.com/hitoshi/carman/internal/model"
	"github.com/hitoshi/carman/internal/session"
)

// View はトップレベルで表示する画面を表す。
type View string

const (
	ViewLogin        View = "login"         // 未ログイン
	ViewAccessDenied View = "access_denied" // ログイン済みだが管理者ではない
	ViewDashboard    View = "dashboard"     // 管理者
)

// Resolve はセッション状態から表示すべき画面を決定する純粋関数。
func Resolve(state session.State) View {
	if !state.IsLoggedIn() {
		return ViewLogin
	}
	if state.Identity.Role != model.RoleAdmin {
		return ViewAccessDenied
	}
	return ViewDashboard
}

// SessionRestorer はセッション復元を起動するインターフェース。
type SessionRestorer interface {
	RestoreSession(ctx context.Context)
}

// Guard はセッションストアの遷移を監視して現在の画面を保持する。
// 初回のEnsureRestoredでのみセッション復元を起動し、再評価のたびに
// 復元をやり直すことはない。
type Guard struct {
	store    *session.Store
	restorer SessionRestorer

	restoreOnce sync.Once

	mu      sync.RWMutex
	current View
}

// NewGuard はGuardを生成し、ストアの購読を開始する。
// 返り値の2つ目は購読解除の関数。
func NewGuard(store *session.Store, restorer SessionRestorer) (*Guard, func()) {
	g := &Guard{
		store:    store,
		restorer: restorer,
		current:  Resolve(store.Snapshot()),
	}

	unsubscribe := store.Subscribe(func(state session.State) {
		g.mu.Lock()
		g.current = Resolve(state)
		g.mu.Unlock()
	})

	return g, unsubscribe
}

// EnsureRestored は初回呼び出し時にのみセッション復元を起動する。
// 2回目以降の呼び出しは何もしない。
func (g *Guard) EnsureRestored(ctx context.Context) {
	g.restoreOnce.Do(func() {
		g.restorer.RestoreSession(ctx)
	})
}

// Current は現在表示すべき画面を返す。
func (g *Guard) Current() View {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}
