package service

import (
	"context"
	"sync"
	"time"

	"github.com/TIANLI0/CaneScan/model"
)

// SessionStore 会话存储
type SessionStore interface {
	// Get 返回会话，不存在或已过期时返回 nil
	Get(ctx context.Context, id string) (*model.Session, error)
	Save(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, id string) error
}

// MemorySessionStore in-memory 会话存储，保存副本，请求间不共享指针
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*model.Session),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	session, exists := s.sessions[id]
	s.mu.RUnlock()

	if !exists {
		return nil, nil
	}

	if !session.ExpiresAt.IsZero() && s.now().After(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, nil
	}

	return session.Clone(), nil
}

func (s *MemorySessionStore) Save(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	s.sessions[session.ID] = session.Clone()
	s.mu.Unlock()

	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	return nil
}

// Sweep 清理过期会话，返回清理数量
func (s *MemorySessionStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if !session.ExpiresAt.IsZero() && now.After(session.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

var _ SessionStore = (*MemorySessionStore)(nil)

// Len 返回当前保存的会话数量
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
