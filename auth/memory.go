package auth

import (
	"context"
	"sync"
)

// MemoryStore is the in-process UserStore used when no database is configured.
type MemoryStore struct {
	mu     sync.Mutex
	byName map[string]User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byName: make(map[string]User)}
}

func (m *MemoryStore) Create(_ context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byName[user.Username]; exists {
		return ErrDuplicateUsername
	}
	m.byName[user.Username] = user

	return nil
}

func (m *MemoryStore) GetByUsername(_ context.Context, username string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.byName[username]
	if !ok {
		return User{}, ErrUserNotFound
	}

	return user, nil
}
