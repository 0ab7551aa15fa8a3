package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"storefront-backend/internal/models"
)

// UserRepository stores profile documents keyed by user id. Emails are stored
// lowercased and are unique.
type UserRepository interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
}

type MemoryUsers struct {
	mu    sync.RWMutex
	byID  map[string]models.User
	email map[string]string
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byID: map[string]models.User{}, email: map[string]string{}}
}

func (m *MemoryUsers) Create(_ context.Context, u models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, taken := m.email[key]; taken {
		return models.User{}, ErrEmailInUse
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.byID[u.ID] = u
	m.email[key] = u.ID
	return u, nil
}

func (m *MemoryUsers) GetByID(_ context.Context, id string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryUsers) GetByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[strings.ToLower(email)]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return m.byID[id], nil
}

// UnavailableUsers is wired when no user store is configured.
type UnavailableUsers struct{}

func (UnavailableUsers) Create(context.Context, models.User) (models.User, error) {
	return models.User{}, ErrUnavailable
}

func (UnavailableUsers) GetByID(context.Context, string) (models.User, error) {
	return models.User{}, ErrUnavailable
}

func (UnavailableUsers) GetByEmail(context.Context, string) (models.User, error) {
	return models.User{}, ErrUnavailable
}
