package state

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	ErrStateNotFound   = errors.New("conversation not found")
	ErrNilConversation = errors.New("conversation is nil")
	ErrInvalidSession  = errors.New("session id is empty")
)

// Store is the session persistence contract consumed by the front end. A
// conversation lives for a single process lifetime; the store exists so
// multiple independent sessions can run concurrently against one router.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Conversation, error)
	Save(ctx context.Context, convo *Conversation) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore keeps conversations in-process, keyed by session id. Safe for
// concurrent sessions; each conversation itself is owned by one turn at a time.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Conversation)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*Conversation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	convo, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return convo, nil
}

func (s *MemoryStore) Save(_ context.Context, convo *Conversation) error {
	if convo == nil {
		return ErrNilConversation
	}
	if strings.TrimSpace(convo.SessionID) == "" {
		return ErrInvalidSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[convo.SessionID] = convo
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
