package users

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// MemoryStore keeps records in process memory. State is lost on exit.
type MemoryStore struct {
	mu    sync.RWMutex
	users []*models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) ReadAll(ctx context.Context) ([]*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.users), nil
}

func (s *MemoryStore) SaveAll(ctx context.Context, users []*models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecords(users); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = cloneAll(users)
	return nil
}
