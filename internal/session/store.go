// Package session はログインセッションの状態管理を提供する。
package session

import (
	"sync"

	"github.com/hitoshi/carman/internal/model"
)

// Phase はセッション状態の局面を表す。常にいずれか1つの局面にある。
type Phase string

const (
	PhaseIdle    Phase = "idle"    // 処理中でもエラーでもない
	PhasePending Phase = "pending" // ログイン処理中
	PhaseFailed  Phase = "failed"  // 直近のログイン試行が失敗
)

// State はセッションの状態スナップショット。
type State struct {
	Identity *model.Identity
	Loading  bool
	Error    string
}

// Phase は現在の局面を返す。
func (s State) Phase() Phase {
	if s.Loading {
		return PhasePending
	}
	if s.Error != "" {
		return PhaseFailed
	}
	return PhaseIdle
}

// IsLoggedIn はログイン済みかどうかを返す。identityの有無と常に一致する。
func (s State) IsLoggedIn() bool {
	return s.Identity != nil
}

// Store はプロセス全体で共有するセッション状態を保持する。
// 状態の書き換えは5つの遷移メソッドに限定され、各遷移は原子的に行われる。
type Store struct {
	mu          sync.RWMutex
	notifyMu    sync.Mutex
	state       State
	subscribers map[int]func(State)
	nextSubID   int
}

// NewStore は初期状態（未ログイン・Idle）のStoreを生成する。
func NewStore() *Store {
	return &Store{
		subscribers: make(map[int]func(State)),
	}
}

// Snapshot は現在の状態のコピーを返す。
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe は状態遷移のたびに呼ばれるリスナーを登録する。
// 通知はコミット順に直列に届く。リスナーの中から遷移メソッドを
// 呼び出すとデッドロックするため、リスナーは状態の読み取りに留めること。
// 返された関数を呼ぶと購読を解除する。
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// LoginStart はログイン処理の開始を記録する。Pendingに遷移し、エラーをクリアする。
func (s *Store) LoginStart() {
	s.transition(func(st *State) {
		st.Loading = true
		st.Error = ""
	})
}

// LoginSuccess はログイン成功を記録する。Idleに遷移し、identityを丸ごと置き換える。
func (s *Store) LoginSuccess(identity *model.Identity) {
	s.transition(func(st *State) {
		st.Identity = identity
		st.Loading = false
		st.Error = ""
	})
}

// LoginFailure はログイン失敗を記録する。Failedに遷移する。
// 既存のidentityは変更しない。ログイン済みユーザーの再認証失敗で
// 暗黙にログアウトさせないため。
func (s *Store) LoginFailure(message string) {
	s.transition(func(st *State) {
		st.Loading = false
		st.Error = message
	})
}

// SetIdentity はidentityを丸ごと置き換え、Idleに遷移する。
// セッション復元の確定に使用する。nilの場合は未ログイン状態になる。
func (s *Store) SetIdentity(identity *model.Identity) {
	s.transition(func(st *State) {
		st.Identity = identity
		st.Loading = false
		st.Error = ""
	})
}

// Clear は未ログインのIdle状態に戻す。
func (s *Store) Clear() {
	s.transition(func(st *State) {
		st.Identity = nil
		st.Loading = false
		st.Error = ""
	})
}

// transition は状態を原子的に書き換え、購読者に新しい状態を通知する。
// notifyMuを書き換えから通知完了まで保持し、通知の到達順序が
// コミットの順序と常に一致するようにする。このためリスナーの中から
// 遷移メソッドを呼び出してはならない。
func (s *Store) transition(mutate func(*State)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	mutate(&s.state)
	next := s.state
	fns := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}
