package auth

import (
	"sync"

	"github.com/bnema/stellar-site/internal/domain"
)

// sessionState holds one browser session's signed-in user and the observers
// waiting for changes to it.
type sessionState struct {
	mu        sync.Mutex
	user      *domain.AuthUser
	observers map[int]func(*domain.AuthUser)
	nextID    int
}

func newSessionState(current *domain.AuthUser) *sessionState {
	return &sessionState{user: copyUser(current), observers: make(map[int]func(*domain.AuthUser))}
}

func (s *sessionState) current() *domain.AuthUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUser(s.user)
}

// set stores user and notifies observers outside the lock.
func (s *sessionState) set(user *domain.AuthUser) {
	s.mu.Lock()
	s.user = copyUser(user)
	observers := make([]func(*domain.AuthUser), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(copyUser(user))
	}
}

func (s *sessionState) observe(fn func(*domain.AuthUser)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	current := copyUser(s.user)
	s.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func copyUser(user *domain.AuthUser) *domain.AuthUser {
	if user == nil {
		return nil
	}
	cp := *user
	return &cp
}
