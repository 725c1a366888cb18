package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Directory owns the user collection: creation with identity uniqueness,
// partial updates, lookup and the failed-attempt counter. Every mutation
// is a read-modify-write of the whole collection under one lock, so two
// concurrent creates can never both claim the same username or email.
type Directory struct {
	store  users.Store
	logger logging.Logger

	mu sync.RWMutex

	now     func() time.Time
	newID   func() string
	backoff func() retry.Backoff
}

// NewDirectory returns a Directory backed by store. When store also
// implements users.Transactional, each mutation runs inside one store
// transaction.
func NewDirectory(store users.Store, logger logging.Logger) *Directory {
	return &Directory{
		store:  store,
		logger: logger.With("module", "directory"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewConstant(25*time.Millisecond))
		},
	}
}

// snapshot is the in-memory copy of the collection for one mutation.
type snapshot struct {
	users []*models.User
}

func (s *snapshot) find(match func(*models.User) bool) *models.User {
	for _, u := range s.users {
		if match(u) {
			return u
		}
	}
	return nil
}

func (s *snapshot) byID(id string) *models.User {
	return s.find(func(u *models.User) bool { return u.ID == id })
}

func (s *snapshot) byUsername(username string) *models.User {
	return s.find(func(u *models.User) bool { return u.Username == username })
}

func (s *snapshot) byEmail(email string) *models.User {
	return s.find(func(u *models.User) bool { return u.Email == email })
}

// CreateUser inserts a new record. Duplicate emails and usernames are
// rejected with errors matching common.ErrDuplicateIdentity.
func (d *Directory) CreateUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Username) == "" || in.PasswordDigest == "" {
		return nil, oops.Code("DIRECTORY_INVALID_USER").
			Wrapf(common.ErrorValidation, "email, username and password digest are required")
	}

	var created *models.User
	err := d.mutate(ctx, "create user", func(s *snapshot) error {
		if s.byEmail(in.Email) != nil {
			return oops.Code("DIRECTORY_DUPLICATE_EMAIL").With("email", in.Email).Wrap(common.ErrDuplicateEmail)
		}
		if s.byUsername(in.Username) != nil {
			return oops.Code("DIRECTORY_DUPLICATE_USERNAME").With("username", in.Username).Wrap(common.ErrDuplicateUsername)
		}

		now := d.now()
		u := &models.User{
			ID:              d.newID(),
			Email:           in.Email,
			Username:        in.Username,
			PasswordDigest:  in.PasswordDigest,
			PasswordHistory: []string{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		s.users = append(s.users, u)
		created = u.Clone()
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateIdentity) {
			d.logger.Warn(ctx, "duplicate identity rejected", "username", in.Username)
		}
		return nil, err
	}

	d.logger.Info(ctx, "user created", "user_id", created.ID, "username", created.Username)
	return created, nil
}

// UpdateUser applies upd to the record with the given id. Email and
// username changes are re-checked for uniqueness against other records.
func (d *Directory) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	var updated *models.User
	err := d.mutate(ctx, "update user", func(s *snapshot) error {
		u := s.byID(id)
		if u == nil {
			return notFound(id)
		}

		if upd.Email != nil && *upd.Email != u.Email {
			if other := s.byEmail(*upd.Email); other != nil && other.ID != id {
				return oops.Code("DIRECTORY_DUPLICATE_EMAIL").With("email", *upd.Email).Wrap(common.ErrDuplicateEmail)
			}
			u.Email = *upd.Email
		}
		if upd.Username != nil && *upd.Username != u.Username {
			if other := s.byUsername(*upd.Username); other != nil && other.ID != id {
				return oops.Code("DIRECTORY_DUPLICATE_USERNAME").With("username", *upd.Username).Wrap(common.ErrDuplicateUsername)
			}
			u.Username = *upd.Username
		}
		if upd.PasswordDigest != nil {
			u.RotatePassword(*upd.PasswordDigest)
		}
		if upd.LoginAttempts != nil {
			u.LoginAttempts = *upd.LoginAttempts
			if u.LoginAttempts == 0 {
				u.LastFailedAt = nil
			}
		}

		u.UpdatedAt = d.now()
		updated = u.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// FindUser looks a record up by exact username. found is false, with a nil
// error, when no such user exists.
func (d *Directory) FindUser(ctx context.Context, username string) (*models.User, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	records, err := d.store.ReadAll(ctx)
	if err != nil {
		return nil, false, storeFailure("find user", "read", err)
	}
	u := (&snapshot{users: records}).byUsername(username)
	if u == nil {
		return nil, false, nil
	}
	return u.Clone(), true, nil
}

// RecordFailure increments the failed-attempt counter of user id and
// returns the new value. When cooldown is positive and the previous
// failure is older than cooldown, the counter restarts from zero first.
func (d *Directory) RecordFailure(ctx context.Context, id string, cooldown time.Duration) (int, error) {
	var attempts int
	err := d.mutate(ctx, "record failure", func(s *snapshot) error {
		u := s.byID(id)
		if u == nil {
			return notFound(id)
		}

		now := d.now()
		if cooldown > 0 && u.LastFailedAt != nil && now.Sub(*u.LastFailedAt) >= cooldown {
			u.LoginAttempts = 0
		}
		u.LoginAttempts++
		u.LastFailedAt = &now
		u.UpdatedAt = now
		attempts = u.LoginAttempts
		return nil
	})
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

// RecordSuccess resets the failed-attempt counter of user id.
func (d *Directory) RecordSuccess(ctx context.Context, id string) (*models.User, error) {
	zero := 0
	return d.UpdateUser(ctx, id, models.UserUpdate{LoginAttempts: &zero})
}

// mutate runs fn against a fresh snapshot and persists the result. Version
// conflicts reported by optimistic stores are retried from a new read.
func (d *Directory) mutate(ctx context.Context, op string, fn func(s *snapshot) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cycle := func(ctx context.Context, store users.Store) error {
		records, err := store.ReadAll(ctx)
		if err != nil {
			return storeFailure(op, "read", err)
		}
		s := &snapshot{users: records}
		if err := fn(s); err != nil {
			return err
		}
		if err := store.SaveAll(ctx, s.users); err != nil {
			return storeFailure(op, "write", err)
		}
		return nil
	}

	return retry.Do(ctx, d.backoff(), func(ctx context.Context) error {
		var err error
		if tx, ok := d.store.(users.Transactional); ok {
			err = tx.WithinTx(ctx, cycle)
		} else {
			err = cycle(ctx, d.store)
		}
		if err != nil {
			err = storeFailure(op, "transaction", err)
		}
		if errors.Is(err, common.ErrVersionConflict) {
			d.logger.Warn(ctx, "version conflict, retrying", "operation", op)
			return retry.RetryableError(err)
		}
		return err
	})
}

func notFound(id string) error {
	return oops.Code("DIRECTORY_USER_NOT_FOUND").With("user_id", id).Wrap(common.ErrorNotFound)
}

func storeFailure(op, stage string, err error) error {
	if _, ok := oops.AsOops(err); ok {
		return err
	}
	return oops.Code("DIRECTORY_STORE_FAILED").With("operation", op).With("stage", stage).Wrap(err)
}
