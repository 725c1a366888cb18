package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	Name string
	// LockQuery serialises writers inside a transaction. Empty when the
	// engine already serialises transactions.
	LockQuery string
	// Numbered placeholders ($1, $2) instead of '?'.
	Numbered bool
}

// usersLockKey is the advisory lock key guarding the users table.
const usersLockKey int64 = 0x676f70_6175_7468

var (
	Postgres = Dialect{
		Name:      "postgres",
		LockQuery: "SELECT pg_advisory_xact_lock(?)",
		Numbered:  true,
	}
	SQLite = Dialect{
		Name: "sqlite",
	}
)

func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore keeps one row per user. SaveAll upserts every record and drops
// rows that are no longer present.
type SQLStore struct {
	db      dbx.DBTX
	conn    dbx.TxBeginner
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, conn: db, dialect: dialect}
}

const selectUsers = `SELECT id, email, username, password, password_history,
       login_attempts, last_failed_at, created_at, updated_at
  FROM users
 ORDER BY created_at, id`

const upsertUser = `INSERT INTO users (id, email, username, password, password_history,
                   login_attempts, last_failed_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    email = excluded.email,
    username = excluded.username,
    password = excluded.password,
    password_history = excluded.password_history,
    login_attempts = excluded.login_attempts,
    last_failed_at = excluded.last_failed_at,
    updated_at = excluded.updated_at`

func (s *SQLStore) ReadAll(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, selectUsers)
	if err != nil {
		return nil, storageError("db error", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		var (
			u         models.User
			history   string
			lastFail  timeValue
			createdAt timeValue
			updatedAt timeValue
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordDigest, &history,
			&u.LoginAttempts, &lastFail, &createdAt, &updatedAt); err != nil {
			return nil, storageError("db error", err)
		}
		if err := json.Unmarshal([]byte(history), &u.PasswordHistory); err != nil {
			return nil, storageError("decode password history", err)
		}
		if u.PasswordHistory == nil {
			u.PasswordHistory = []string{}
		}
		u.LastFailedAt = lastFail.ptr()
		u.CreatedAt = createdAt.t
		u.UpdatedAt = updatedAt.t
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("db error", err)
	}
	return users, nil
}

func (s *SQLStore) SaveAll(ctx context.Context, users []*models.User) error {
	if err := validateRecords(users); err != nil {
		return err
	}
	if s.conn == nil {
		return s.save(ctx, users)
	}
	return s.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		return tx.(*SQLStore).save(ctx, users)
	})
}

// WithinTx runs fn in a transaction holding the users lock, so a
// read-modify-write cycle is atomic across processes.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	if s.conn == nil {
		return fn(ctx, s)
	}
	return dbx.WithTx(ctx, s.conn, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if s.dialect.LockQuery != "" {
			if _, err := tx.ExecContext(ctx, s.dialect.rebind(s.dialect.LockQuery), usersLockKey); err != nil {
				return storageError("acquire users lock", err)
			}
		}
		return fn(ctx, &SQLStore{db: tx, dialect: s.dialect})
	})
}

func (s *SQLStore) save(ctx context.Context, users []*models.User) error {
	upsert := s.dialect.rebind(upsertUser)
	ids := make([]any, 0, len(users))

	for _, u := range users {
		history := u.PasswordHistory
		if history == nil {
			history = []string{}
		}
		encoded, err := json.Marshal(history)
		if err != nil {
			return storageError("encode password history", err)
		}
		if _, err := s.db.ExecContext(ctx, upsert,
			u.ID, u.Email, u.Username, u.PasswordDigest, string(encoded),
			u.LoginAttempts, nullableTime(u.LastFailedAt), u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
		); err != nil {
			return storageError("db error", err)
		}
		ids = append(ids, u.ID)
	}

	del := "DELETE FROM users"
	if len(ids) > 0 {
		del += " WHERE id NOT IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ") + ")"
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(del), ids...); err != nil {
		return storageError("db error", err)
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// timeValue scans timestamps that drivers return either as time.Time or
// as text.
type timeValue struct {
	t     time.Time
	valid bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func (v *timeValue) Scan(src any) error {
	switch value := src.(type) {
	case nil:
		*v = timeValue{}
		return nil
	case time.Time:
		*v = timeValue{t: value.UTC(), valid: true}
		return nil
	case string:
		return v.parse(value)
	case []byte:
		return v.parse(string(value))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (v *timeValue) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*v = timeValue{t: t.UTC(), valid: true}
			return nil
		}
	}
	return errors.New("unrecognised timestamp " + strconv.Quote(s))
}

func (v timeValue) ptr() *time.Time {
	if !v.valid {
		return nil
	}
	t := v.t
	return &t
}

var _ sql.Scanner = (*timeValue)(nil)
