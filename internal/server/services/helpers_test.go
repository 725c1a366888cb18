package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestDirectory(t *testing.T, store users.Store) *Directory {
	t.Helper()
	d := NewDirectory(store, newTestLogger())
	d.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(3, retry.NewConstant(time.Millisecond))
	}
	return d
}

func newTestPolicy(t *testing.T) *password.Policy {
	t.Helper()
	h, err := password.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	p, err := password.NewPolicy(h)
	require.NoError(t, err)
	return p
}

type fixture struct {
	store     *users.MemoryStore
	directory *Directory
	issuer    *auth.Issuer
	service   *AuthService
	recorder  *fakeRecorder
}

func newFixture(t *testing.T, mutate ...func(c *config.Config)) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	for _, m := range mutate {
		m(cfg)
	}

	store := users.NewMemoryStore()
	dir := newTestDirectory(t, store)
	issuer, err := auth.NewIssuer(cfg.SecretKey, cfg.AccessTokenValidityDuration, cfg.TokenIssuer)
	require.NoError(t, err)

	rec := &fakeRecorder{}
	svc, err := NewAuthService(dir, newTestPolicy(t), issuer, newTestLogger(), cfg)
	require.NoError(t, err)
	svc.WithRecorder(rec)

	return &fixture{store: store, directory: dir, issuer: issuer, service: svc, recorder: rec}
}

func (f *fixture) register(t *testing.T, username, email, pass string) *models.UserView {
	t.Helper()
	res := f.service.Register(context.Background(), username, email, pass)
	require.True(t, res.Success, res.Message)
	return res.User
}

type fakeRecorder struct {
	mu              sync.Mutex
	logins          []string
	registrations   []string
	passwordChanges []string
}

func (r *fakeRecorder) ObserveLogin(o string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins = append(r.logins, o)
}

func (r *fakeRecorder) ObserveRegistration(o string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations = append(r.registrations, o)
}

func (r *fakeRecorder) ObservePasswordChange(o string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passwordChanges = append(r.passwordChanges, o)
}

// scriptedStore wraps a MemoryStore and injects failures.
type scriptedStore struct {
	*users.MemoryStore
	mu        sync.Mutex
	readErr   error
	saveErrs  []error
	saveCalls int
}

func (s *scriptedStore) ReadAll(ctx context.Context) ([]*models.User, error) {
	s.mu.Lock()
	err := s.readErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryStore.ReadAll(ctx)
}

func (s *scriptedStore) SaveAll(ctx context.Context, records []*models.User) error {
	s.mu.Lock()
	s.saveCalls++
	var err error
	if len(s.saveErrs) > 0 {
		err, s.saveErrs = s.saveErrs[0], s.saveErrs[1:]
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.SaveAll(ctx, records)
}

// txStore records WithinTx usage on top of a MemoryStore.
type txStore struct {
	*users.MemoryStore
	mu    sync.Mutex
	calls int
}

func (s *txStore) WithinTx(ctx context.Context, fn func(ctx context.Context, s users.Store) error) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return fn(ctx, s.MemoryStore)
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}
