// Package repomanager opens the user store selected by configuration:
// it owns the database handle or object-store client behind the store,
// runs schema migrations and releases everything on Close.
package repomanager

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/filex"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/migrations"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite"
)

var (
	openDB = sql.Open

	// gooseUpContext is a seam for testing goose.UpContext.
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}

	newS3Store = users.NewS3Store

	pingBackoff = func() retry.Backoff {
		return retry.WithMaxRetries(5, retry.NewExponential(200*time.Millisecond))
	}

	// goose keeps its base FS and dialect in package state.
	gooseMu sync.Mutex
)

// Manager holds the configured user store.
type Manager struct {
	backend string
	store   users.Store
	db      *sql.DB
}

// New opens the store named by cfg.StorageBackend. SQL backends are
// pinged and migrated before New returns.
func New(ctx context.Context, cfg *config.Config) (*Manager, error) {
	m := &Manager{backend: cfg.StorageBackend}

	switch cfg.StorageBackend {
	case config.StorageMemory:
		m.store = users.NewMemoryStore()

	case config.StorageFile:
		if _, err := filex.EnsureParentDir(cfg.UsersFile); err != nil {
			return nil, oops.Code("REPO_FILE_DIR").With("path", cfg.UsersFile).Wrap(err)
		}
		m.store = users.NewFileStore(cfg.UsersFile)

	case config.StoragePostgres:
		db, err := openSQL(ctx, "pgx", cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		if err := RunMigrations(ctx, db, "pgx", migrations.PostgresDir); err != nil {
			_ = db.Close()
			return nil, err
		}
		m.db = db
		m.store = users.NewSQLStore(db, users.Postgres)

	case config.StorageSQLite:
		if _, err := filex.EnsureParentDir(cfg.SQLitePath); err != nil {
			return nil, oops.Code("REPO_FILE_DIR").With("path", cfg.SQLitePath).Wrap(err)
		}
		db, err := openSQL(ctx, "sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		// one writer at a time; SQLite has no row-level locking
		db.SetMaxOpenConns(1)
		if err := RunMigrations(ctx, db, "sqlite3", migrations.SQLiteDir); err != nil {
			_ = db.Close()
			return nil, err
		}
		m.db = db
		m.store = users.NewSQLStore(db, users.SQLite)

	case config.StorageS3:
		store, err := newS3Store(ctx, users.S3Config{
			Bucket:       cfg.S3Bucket,
			Key:          cfg.S3Key,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
		})
		if err != nil {
			return nil, oops.Code("REPO_S3_CLIENT").With("bucket", cfg.S3Bucket).Wrap(err)
		}
		m.store = store

	default:
		return nil, oops.Code("REPO_UNKNOWN_BACKEND").With("backend", cfg.StorageBackend).
			Wrapf(common.ErrConfiguration, "unknown storage backend %q", cfg.StorageBackend)
	}

	return m, nil
}

func openSQL(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := openDB(driver, dsn)
	if err != nil {
		return nil, oops.Code("REPO_DB_OPEN").With("driver", driver).Wrap(err)
	}

	err = retry.Do(ctx, pingBackoff(), func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, oops.Code("REPO_DB_PING").With("driver", driver).Wrap(err)
	}
	return db, nil
}

// RunMigrations applies the embedded migrations in dir using the given
// goose dialect.
func RunMigrations(ctx context.Context, db *sql.DB, dialect, dir string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return oops.Code("REPO_MIGRATE").With("dialect", dialect).Wrap(err)
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return oops.Code("REPO_MIGRATE").With("dialect", dialect).With("dir", dir).Wrap(err)
	}
	return nil
}

func (m *Manager) Backend() string {
	return m.backend
}

func (m *Manager) Users() users.Store {
	return m.store
}

// Ping checks that the backend is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	if m.db != nil {
		return m.db.PingContext(ctx)
	}
	_, err := m.store.ReadAll(ctx)
	return err
}

func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
