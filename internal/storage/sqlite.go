package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"biteboard/pkg/logx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db   *sql.DB
	path string
	log  logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &PersistError{Op: "open", Path: path, Err: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &PersistError{Op: "open", Path: path, Err: err}
	}

	// SQLite prefers a single writer; one connection also keeps the pragmas below in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	st := &sqliteStore{db: db, path: path, log: log}
	if err := st.migrate(); err != nil {
		_ = db.Close()
		return nil, &PersistError{Op: "migrate", Path: path, Err: err}
	}
	return st, nil
}

func (s *sqliteStore) migrate() error {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	version, _, _ := m.Version()
	s.log.Debug("sqlite schema ready", logx.Int("version", int(version)))
	return nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) (*Data, error) {
	d := NewData()

	rows, err := s.db.QueryContext(ctx, `SELECT id, preferred_provider FROM users`)
	if err != nil {
		return nil, &PersistError{Op: "read", Path: s.path, Err: err}
	}
	for rows.Next() {
		var id string
		u := User{Roles: []string{}}
		if err := rows.Scan(&id, &u.PreferredMenuProvider); err != nil {
			_ = rows.Close()
			return nil, &PersistError{Op: "read", Path: s.path, Err: err}
		}
		d.Users[id] = u
	}
	if err := closeRows(rows); err != nil {
		return nil, &PersistError{Op: "read", Path: s.path, Err: err}
	}

	rows, err = s.db.QueryContext(ctx, `SELECT user_id, role FROM user_roles ORDER BY user_id, position`)
	if err != nil {
		return nil, &PersistError{Op: "read", Path: s.path, Err: err}
	}
	for rows.Next() {
		var id, role string
		if err := rows.Scan(&id, &role); err != nil {
			_ = rows.Close()
			return nil, &PersistError{Op: "read", Path: s.path, Err: err}
		}
		u := d.Users[id]
		u.Roles = append(u.Roles, role)
		d.Users[id] = u
	}
	if err := closeRows(rows); err != nil {
		return nil, &PersistError{Op: "read", Path: s.path, Err: err}
	}

	rows, err = s.db.QueryContext(ctx, `SELECT channel_id, time, provider, add_minutes FROM channel_subscriptions`)
	if err != nil {
		return nil, &PersistError{Op: "read", Path: s.path, Err: err}
	}
	for rows.Next() {
		var id string
		var c ChannelSubscription
		if err := rows.Scan(&id, &c.Time, &c.Provider, &c.AddTime); err != nil {
			_ = rows.Close()
			return nil, &PersistError{Op: "read", Path: s.path, Err: err}
		}
		d.Channels[id] = c
	}
	if err := closeRows(rows); err != nil {
		return nil, &PersistError{Op: "read", Path: s.path, Err: err}
	}
	return d, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}

// Save replaces every row in one transaction.
func (s *sqliteStore) Save(ctx context.Context, d *Data) error {
	if err := s.save(ctx, d); err != nil {
		return &PersistError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

func (s *sqliteStore) save(ctx context.Context, d *Data) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM user_roles`,
		`DELETE FROM users`,
		`DELETE FROM channel_subscriptions`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}

	for id, u := range d.Users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users(id, preferred_provider) VALUES(?, ?)`, id, u.PreferredMenuProvider); err != nil {
			return err
		}
		for i, role := range u.Roles {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO user_roles(user_id, role, position) VALUES(?, ?, ?)`, id, role, i); err != nil {
				return err
			}
		}
	}
	for id, c := range d.Channels {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO channel_subscriptions(channel_id, time, provider, add_minutes) VALUES(?, ?, ?, ?)`,
			id, c.Time, c.Provider, c.AddTime); err != nil {
			return err
		}
	}
	return tx.Commit()
}
