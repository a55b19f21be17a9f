package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/userdesk/internal/model"
)

// SessionStore はセッションデータの永続化インターフェース。
type SessionStore interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れ・未登録の場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Update は既存セッションを上書きする。成り代わり状態の変更で使用する。
	Update(ctx context.Context, session *model.Session) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションをすべて削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int, error)
}

// MemorySessionStore はインメモリのSessionStore実装。
// 静的アカウントのみを扱う本システムではセッションの永続化は不要で、
// プロセス再起動でセッションが失効することは許容される。
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
}

// NewMemorySessionStore はMemorySessionStoreの新しいインスタンスを生成する。
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]model.Session),
	}
}

// Create はセッションを作成する。
func (s *MemorySessionStore) Create(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れ・未登録の場合はnilを返す。
func (s *MemorySessionStore) FindByID(ctx context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if time.Now().After(session.ExpiresAt) {
		// 期限切れは遅延削除する
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, nil
	}

	found := session
	return &found, nil
}

// Update は既存セッションを上書きする。
func (s *MemorySessionStore) Update(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (s *MemorySessionStore) DeleteByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// DeleteExpired は期限切れセッションをすべて削除し、削除件数を返す。
func (s *MemorySessionStore) DeleteExpired(ctx context.Context) (int, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Len は現在保持しているセッション数を返す。テストおよびメトリクス用。
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
