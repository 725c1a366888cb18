package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newUser(n int) models.NewUser {
	return models.NewUser{
		Email:          fmt.Sprintf("user%d@example.com", n),
		Username:       fmt.Sprintf("user%d", n),
		PasswordDigest: fmt.Sprintf("$2a$04$digest%d", n),
	}
}

func TestDirectory_CreateAndFind(t *testing.T) {
	d := newTestDirectory(t, users.NewMemoryStore())
	ctx := context.Background()

	created, err := d.CreateUser(ctx, newUser(1))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 0, created.LoginAttempts)
	assert.NotNil(t, created.PasswordHistory)
	assert.Empty(t, created.PasswordHistory)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	found, ok, err := d.FindUser(ctx, "user1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created, found)

	_, ok, err = d.FindUser(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirectory_FindUserIsCaseSensitive(t *testing.T) {
	d := newTestDirectory(t, users.NewMemoryStore())
	_, err := d.CreateUser(context.Background(), newUser(1))
	require.NoError(t, err)

	_, ok, err := d.FindUser(context.Background(), "USER1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirectory_ReturnedRecordsAreCopies(t *testing.T) {
	d := newTestDirectory(t, users.NewMemoryStore())
	ctx := context.Background()

	created, err := d.CreateUser(ctx, newUser(1))
	require.NoError(t, err)
	created.Username = "hijacked"

	_, ok, err := d.FindUser(ctx, "hijacked")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirectory_CreateUser_Duplicates(t *testing.T) {
	d := newTestDirectory(t, users.NewMemoryStore())
	ctx := context.Background()

	_, err := d.CreateUser(ctx, newUser(1))
	require.NoError(t, err)

	sameEmail := newUser(2)
	sameEmail.Email = "user1@example.com"
	_, err = d.CreateUser(ctx, sameEmail)
	require.ErrorIs(t, err, common.ErrDuplicateEmail)
	require.ErrorIs(t, err, common.ErrDuplicateIdentity)
	assertErrorCode(t, err, "DIRECTORY_DUPLICATE_EMAIL")

	sameName := newUser(3)
	sameName.Username = "user1"
	_, err = d.CreateUser(ctx, sameName)
	require.ErrorIs(t, err, common.ErrDuplicateUsername)
	require.ErrorIs(t, err, common.ErrDuplicateIdentity)
	assertErrorCode(t, err, "DIRECTORY_DUPLICATE_USERNAME")

	all, err := d.store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDirectory_CreateUser_RequiresFields(t *testing.T) {
	d := newTestDirectory(t, users.NewMemoryStore())

	for _, in := range []models.NewUser{
		{Username: "a", PasswordDigest: "d"},
		{Email: "a@x", PasswordDigest: "d"},
		{Email: "a@x", Username: "a"},
	} {
		_, err := d.CreateUser(context.Background(), in)
		assert.ErrorIs(t, err, common.ErrorValidation)
	}
}

func TestDirectory_ConcurrentCreatesKeepUniqueness(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := newTestDirectory(t, users.NewMemoryStore())
	ctx := context.Background()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := newUser(i)
			in.Username = "contested"
			_, err := d.CreateUser(ctx, in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, common.ErrDuplicateUsername):
				dupes++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, dupes)
}

func TestDirectory_UpdateUser(t *testing.T) {
	d := newTestDirectory(t, users.NewMemoryStore())
	ctx := context.Background()

	a, err := d.CreateUser(ctx, newUser(1))
	require.NoError(t, err)
	_, err = d.CreateUser(ctx, newUser(2))
	require.NoError(t, err)

	later := a.UpdatedAt.Add(time.Minute)
	d.now = func() time.Time { return later }

	t.Run("unknown id", func(t *testing.T) {
		_, err := d.UpdateUser(ctx, "missing", models.UserUpdate{})
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("username taken by other user", func(t *testing.T) {
		taken := "user2"
		_, err := d.UpdateUser(ctx, a.ID, models.UserUpdate{Username: &taken})
		assert.ErrorIs(t, err, common.ErrDuplicateUsername)
	})

	t.Run("email taken by other user", func(t *testing.T) {
		taken := "user2@example.com"
		_, err := d.UpdateUser(ctx, a.ID, models.UserUpdate{Email: &taken})
		assert.ErrorIs(t, err, common.ErrDuplicateEmail)
	})

	t.Run("own values are not duplicates", func(t *testing.T) {
		same := "user1"
		got, err := d.UpdateUser(ctx, a.ID, models.UserUpdate{Username: &same})
		require.NoError(t, err)
		assert.Equal(t, "user1", got.Username)
	})

	t.Run("rename and touch updated_at", func(t *testing.T) {
		name, email := "renamed", "renamed@example.com"
		got, err := d.UpdateUser(ctx, a.ID, models.UserUpdate{Username: &name, Email: &email})
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Username)
		assert.Equal(t, "renamed@example.com", got.Email)
		assert.Equal(t, later, got.UpdatedAt)
		assert.Equal(t, a.CreatedAt, got.CreatedAt)
	})
}

func TestDirectory_PasswordHistoryIsBounded(t *testing.T) {
	d := newTestDirectory(t, users.NewMemoryStore())
	ctx := context.Background()

	u, err := d.CreateUser(ctx, newUser(1))
	require.NoError(t, err)

	var got *models.User
	for i := 1; i <= 6; i++ {
		digest := fmt.Sprintf("$2a$04$next%d", i)
		got, err = d.UpdateUser(ctx, u.ID, models.UserUpdate{PasswordDigest: &digest})
		require.NoError(t, err)
	}

	assert.Equal(t, "$2a$04$next6", got.PasswordDigest)
	assert.Equal(t, []string{"$2a$04$next5", "$2a$04$next4", "$2a$04$next3", "$2a$04$next2", "$2a$04$next1"}, got.PasswordHistory)
	assert.Len(t, got.PasswordHistory, models.MaxPasswordHistory)
}

func TestDirectory_RecordFailureAndSuccess(t *testing.T) {
	d := newTestDirectory(t, users.NewMemoryStore())
	ctx := context.Background()

	u, err := d.CreateUser(ctx, newUser(1))
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		got, err := d.RecordFailure(ctx, u.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	stored, _, err := d.FindUser(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.LoginAttempts)
	require.NotNil(t, stored.LastFailedAt)

	reset, err := d.RecordSuccess(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reset.LoginAttempts)
	assert.Nil(t, reset.LastFailedAt)

	_, err = d.RecordFailure(ctx, "missing", 0)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDirectory_RecordFailureCooldownRestartsCounter(t *testing.T) {
	d := newTestDirectory(t, users.NewMemoryStore())
	ctx := context.Background()

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }

	u, err := d.CreateUser(ctx, newUser(1))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := d.RecordFailure(ctx, u.ID, 15*time.Minute)
		require.NoError(t, err)
	}

	clock = clock.Add(14 * time.Minute)
	n, err := d.RecordFailure(ctx, u.ID, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5, n, "within cooldown the counter keeps growing")

	clock = clock.Add(15 * time.Minute)
	n, err = d.RecordFailure(ctx, u.ID, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "after cooldown the counter restarts")
}

func TestDirectory_StoreFailures(t *testing.T) {
	boom := fmt.Errorf("disk gone: %w", common.ErrStorage)
	store := &scriptedStore{MemoryStore: users.NewMemoryStore(), readErr: boom}
	d := newTestDirectory(t, store)
	ctx := context.Background()

	_, _, err := d.FindUser(ctx, "any")
	require.ErrorIs(t, err, common.ErrStorage)
	assertErrorCode(t, err, "DIRECTORY_STORE_FAILED")

	_, err = d.CreateUser(ctx, newUser(1))
	require.ErrorIs(t, err, common.ErrStorage)
	assert.Equal(t, common.KindStorage, common.KindOf(err))
}

func TestDirectory_NullRecordOnDiskIsStorageFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`[null]`), 0o600))
	d := newTestDirectory(t, users.NewFileStore(path))

	require.NotPanics(t, func() {
		_, found, err := d.FindUser(context.Background(), "alice")
		assert.False(t, found)
		assert.ErrorIs(t, err, common.ErrStorage)
		assertErrorCode(t, err, "DIRECTORY_STORE_FAILED")
	})
}

func TestDirectory_RetriesVersionConflicts(t *testing.T) {
	conflict := fmt.Errorf("put: %w", common.ErrVersionConflict)
	store := &scriptedStore{MemoryStore: users.NewMemoryStore(), saveErrs: []error{conflict, conflict}}
	d := newTestDirectory(t, store)

	created, err := d.CreateUser(context.Background(), newUser(1))
	require.NoError(t, err)
	assert.Equal(t, "user1", created.Username)
	assert.Equal(t, 3, store.saveCalls)

	all, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDirectory_GivesUpAfterRepeatedConflicts(t *testing.T) {
	conflict := fmt.Errorf("put: %w", common.ErrVersionConflict)
	store := &scriptedStore{
		MemoryStore: users.NewMemoryStore(),
		saveErrs:    []error{conflict, conflict, conflict, conflict, conflict},
	}
	d := newTestDirectory(t, store)

	_, err := d.CreateUser(context.Background(), newUser(1))
	require.ErrorIs(t, err, common.ErrVersionConflict)
	assert.Equal(t, 4, store.saveCalls)
}

func TestDirectory_UsesTransactionsWhenAvailable(t *testing.T) {
	store := &txStore{MemoryStore: users.NewMemoryStore()}
	d := newTestDirectory(t, store)
	ctx := context.Background()

	u, err := d.CreateUser(ctx, newUser(1))
	require.NoError(t, err)
	_, err = d.RecordFailure(ctx, u.ID, 0)
	require.NoError(t, err)
	_, _, err = d.FindUser(ctx, "user1")
	require.NoError(t, err)

	assert.Equal(t, 2, store.calls, "only mutations run in a transaction")
}
