package visitor

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore はプロセス内のmapにセッションを保持するStore。
// 開発環境とテストで使用する。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

// Get はセッションのコピーを返す。
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.UserInfo = append(json.RawMessage(nil), s.UserInfo...)
	return &s, nil
}

// Save はセッションのコピーを保存する。
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	copied := *s
	copied.UserInfo = append(json.RawMessage(nil), s.UserInfo...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = copied
	return nil
}

// Delete はセッションを削除する。
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
