// Package users contains the persistence backends for user records. Every
// backend exposes the same replace-all contract: ReadAll returns the full
// collection and SaveAll overwrites it.
package users

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Store is the persistence contract for the user collection.
type Store interface {
	// ReadAll returns every persisted record, or an empty slice when
	// nothing has been persisted yet.
	ReadAll(ctx context.Context) ([]*models.User, error)
	// SaveAll replaces the persisted collection with users.
	SaveAll(ctx context.Context, users []*models.User) error
}

// Transactional is implemented by stores able to run a read-modify-write
// cycle atomically across processes. fn receives a Store bound to the
// transaction.
type Transactional interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

func validateRecords(users []*models.User) error {
	for i, u := range users {
		if u == nil {
			return fmt.Errorf("record %d is nil: %w", i, common.ErrorValidation)
		}
		if u.ID == "" {
			return fmt.Errorf("record %d has no id: %w", i, common.ErrorValidation)
		}
	}
	return nil
}

// decodeUsers parses a persisted JSON array. Blank input is an empty
// collection; malformed JSON or unusable records are storage faults.
func decodeUsers(op string, data []byte) ([]*models.User, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []*models.User{}, nil
	}
	var users []*models.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, storageError(op, err)
	}
	if err := validateRecords(users); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, common.ErrStorage, err)
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

func cloneAll(users []*models.User) []*models.User {
	out := make([]*models.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Clone())
	}
	return out
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorage, err)
}
