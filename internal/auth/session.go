package auth

import (
	"context"
	"sync"

	"storefront-backend/internal/models"
)

// Listener is called with the new identity, nil after sign out.
type Listener func(ctx context.Context, user *models.User)

// Session is the identity observed by one request or page view. It starts in
// the loading state until the first identity is resolved.
type Session struct {
	mu        sync.Mutex
	user      *models.User
	loading   bool
	listeners map[int]Listener
	nextID    int
}

func NewSession() *Session {
	return &Session{loading: true, listeners: map[int]Listener{}}
}

func (s *Session) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// HasRole reports whether the signed-in user holds one of roles.
func (s *Session) HasRole(roles ...models.Role) bool {
	u := s.User()
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// Subscribe registers l for identity changes and returns its unsubscribe func.
func (s *Session) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) set(ctx context.Context, user *models.User) {
	s.mu.Lock()
	if user != nil {
		u := *user
		s.user = &u
	} else {
		s.user = nil
	}
	s.loading = false
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(ctx, user)
	}
}
