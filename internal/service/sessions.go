package service

import (
	"sync"
	"time"

	"github.com/boddenberg/court-assistant-go/internal/domain"

	"github.com/google/uuid"
)

// SessionStore is an in-memory, process-wide store of case conversations.
// It is safe for concurrent use.
type SessionStore struct {
	mu     sync.RWMutex
	chats  map[string][]domain.Message
	active string
	now    func() time.Time
}

// NewSessionStore creates an empty store. The first catalogue case starts active.
func NewSessionStore() *SessionStore {
	s := &SessionStore{
		chats: make(map[string][]domain.Message, len(domain.Cases)),
		now:   time.Now,
	}
	if len(domain.Cases) > 0 {
		s.active = domain.Cases[0].ID
	}
	return s
}

// Append adds a message at the end of the case history and returns it.
func (s *SessionStore) Append(caseID string, role domain.Role, text string, isError bool) domain.Message {
	msg := domain.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: s.now().UTC(),
		IsError:   isError,
	}

	s.mu.Lock()
	s.chats[caseID] = append(s.chats[caseID], msg)
	s.mu.Unlock()
	return msg
}

// History returns a copy of the case history in insertion order.
func (s *SessionStore) History(caseID string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, len(s.chats[caseID]))
	copy(out, s.chats[caseID])
	return out
}

// Reset drops the history of one case.
func (s *SessionStore) Reset(caseID string) {
	s.mu.Lock()
	delete(s.chats, caseID)
	s.mu.Unlock()
}

func (s *SessionStore) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *SessionStore) SetActive(caseID string) {
	s.mu.Lock()
	s.active = caseID
	s.mu.Unlock()
}
