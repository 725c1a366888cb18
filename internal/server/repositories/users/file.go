package users

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/filex"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// FileStore persists the collection as a single JSON array on disk.
// Writes go through a temp file and rename.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) ReadAll(ctx context.Context) ([]*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.path)
	s.mu.RUnlock()

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.User{}, nil
		}
		return nil, storageError("read users file", err)
	}
	return decodeUsers("decode users file", data)
}

func (s *FileStore) SaveAll(ctx context.Context, users []*models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecords(users); err != nil {
		return err
	}
	if users == nil {
		users = []*models.User{}
	}

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return storageError("encode users", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := filex.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return storageError("write users file", err)
	}
	return nil
}
