// Package sqlstore implements the repositories on database/sql through sqlx.
// The schema and queries stay within the subset shared by PostgreSQL and SQLite,
// so the same code serves a production Postgres and an embedded SQLite file.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open connects to driver ("postgres" or "sqlite") and applies pending migrations.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// one writer keeps claims serialized and shares a :memory: database
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
		if !strings.Contains(dsn, ":memory:") {
			if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
				db.Close()
				return nil, fmt.Errorf("enabling WAL mode: %w", err)
			}
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s database: %w", driver, err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL DEFAULT '',
				provider TEXT NOT NULL,
				credential TEXT NOT NULL DEFAULT '{}',
				auto_scan_enabled BOOLEAN NOT NULL DEFAULT FALSE,
				auto_scan_interval_minutes INTEGER NOT NULL DEFAULT 5
					CHECK (auto_scan_interval_minutes BETWEEN 1 AND 60),
				last_scan_at TIMESTAMP NULL,
				notification_target TEXT NOT NULL DEFAULT '',
				reply_preferences TEXT NOT NULL DEFAULT '{}',
				needs_reconnect BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_accounts_notification_target ON accounts(notification_target)`,
			`CREATE TABLE IF NOT EXISTS drafts (
				id TEXT PRIMARY KEY,
				account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				source_message_id TEXT NOT NULL,
				conversation_id TEXT NOT NULL DEFAULT '',
				original_message_id TEXT NOT NULL DEFAULT '',
				reference_chain TEXT NOT NULL DEFAULT '[]',
				from_address TEXT NOT NULL DEFAULT '',
				subject TEXT NOT NULL DEFAULT '',
				original_text TEXT NOT NULL,
				generated_text TEXT NOT NULL,
				edited_text TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				resolved_at TIMESTAMP NULL,
				dispatched_message_id TEXT NOT NULL DEFAULT '',
				UNIQUE (account_id, source_message_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_drafts_account_created ON drafts(account_id, created_at)`,
			`CREATE TABLE IF NOT EXISTS draft_claims (
				account_id TEXT NOT NULL,
				source_message_id TEXT NOT NULL,
				claimed_at TIMESTAMP NOT NULL,
				finalized BOOLEAN NOT NULL DEFAULT FALSE,
				PRIMARY KEY (account_id, source_message_id)
			)`,
			`CREATE TABLE IF NOT EXISTS email_logs (
				id TEXT PRIMARY KEY,
				account_id TEXT NOT NULL,
				draft_id TEXT NOT NULL DEFAULT '',
				action TEXT NOT NULL,
				provider TEXT NOT NULL DEFAULT '',
				details TEXT NOT NULL DEFAULT '{}',
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_email_logs_account_created ON email_logs(account_id, created_at)`,
		},
	},
}

// Migrate applies every migration newer than the recorded schema version.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	var current int
	if err := db.GetContext(ctx, &current, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", m.version, err)
		}
		for _, stmt := range m.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("applying migration %d: %w", m.version, err)
			}
		}
		if _, err := tx.ExecContext(ctx, db.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"), m.version, ts(time.Now())); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}
	return nil
}

// ts normalizes timestamps to the precision both engines keep.
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
