package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"draft-relay/internal/apperror"
	"draft-relay/internal/model"

	"github.com/jmoiron/sqlx"
)

type SQLAccountRepository struct {
	db *sqlx.DB
}

func NewSQLAccountRepository(db *sqlx.DB) *SQLAccountRepository {
	return &SQLAccountRepository{db: db}
}

func (r *SQLAccountRepository) Create(ctx context.Context, account *model.Account) error {
	cred, err := encodeCredential(account.Credential)
	if err != nil {
		return err
	}
	prefs, err := json.Marshal(account.ReplyPreferences)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	var lastScan interface{}
	if !account.LastScanAt.IsZero() {
		lastScan = ts(account.LastScanAt)
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		account.ID, account.Email, account.Name, account.Provider, cred,
		account.AutoScanEnabled, account.AutoScanIntervalMinutes, lastScan,
		account.NotificationTarget, string(prefs), account.NeedsReconnect,
		ts(account.CreatedAt), ts(account.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (r *SQLAccountRepository) Upsert(ctx context.Context, account *model.Account) (*model.Account, error) {
	cred, err := encodeCredential(account.Credential)
	if err != nil {
		return nil, err
	}
	prefs, err := json.Marshal(account.ReplyPreferences)
	if err != nil {
		return nil, fmt.Errorf("encoding preferences: %w", err)
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, FALSE, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			name = excluded.name,
			provider = excluded.provider,
			credential = excluded.credential,
			needs_reconnect = FALSE,
			updated_at = excluded.updated_at`),
		account.ID, account.Email, account.Name, account.Provider, cred,
		account.AutoScanEnabled, account.AutoScanIntervalMinutes,
		account.NotificationTarget, string(prefs),
		ts(account.CreatedAt), ts(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("upserting account %s: %w", account.Email, err)
	}
	return r.FindByEmail(ctx, account.Email)
}

func (r *SQLAccountRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return r.findOne(ctx, `id = ?`, id)
}

func (r *SQLAccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findOne(ctx, `email = ?`, email)
}

func (r *SQLAccountRepository) FindByNotificationTarget(ctx context.Context, target string) (*model.Account, error) {
	if target == "" {
		return nil, apperror.ErrAccountNotFound
	}
	return r.findOne(ctx, `notification_target = ?`, target)
}

func (r *SQLAccountRepository) findOne(ctx context.Context, where string, arg interface{}) (*model.Account, error) {
	var row accountRow
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where + ` ORDER BY created_at LIMIT 1`
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrAccountNotFound
		}
		return nil, err
	}
	return row.toModel()
}

func (r *SQLAccountRepository) FindAll(ctx context.Context) ([]*model.Account, error) {
	var rows []accountRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	accounts := make([]*model.Account, 0, len(rows))
	for _, row := range rows {
		a, err := row.toModel()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (r *SQLAccountRepository) UpdateSettings(ctx context.Context, account *model.Account) error {
	prefs, err := json.Marshal(account.ReplyPreferences)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	return r.exec(ctx, account.ID, `
		UPDATE accounts SET auto_scan_enabled = ?, auto_scan_interval_minutes = ?,
			notification_target = ?, reply_preferences = ?, updated_at = ?
		WHERE id = ?`,
		account.AutoScanEnabled, account.AutoScanIntervalMinutes,
		account.NotificationTarget, string(prefs), ts(time.Now()), account.ID)
}

func (r *SQLAccountRepository) UpdateLastScanAt(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, id, `UPDATE accounts SET last_scan_at = ?, updated_at = ? WHERE id = ?`,
		ts(at), ts(time.Now()), id)
}

func (r *SQLAccountRepository) UpdateCredential(ctx context.Context, id string, cred model.Credential) error {
	encoded, err := encodeCredential(cred)
	if err != nil {
		return err
	}
	return r.exec(ctx, id, `
		UPDATE accounts SET credential = ?, needs_reconnect = FALSE, updated_at = ?
		WHERE id = ?`, encoded, ts(time.Now()), id)
}

func (r *SQLAccountRepository) MarkReconnectRequired(ctx context.Context, id string) error {
	return r.exec(ctx, id, `UPDATE accounts SET needs_reconnect = TRUE, updated_at = ? WHERE id = ?`,
		ts(time.Now()), id)
}

func (r *SQLAccountRepository) exec(ctx context.Context, id, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("updating account %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating account %s: %w", id, err)
	}
	if n == 0 {
		return apperror.ErrAccountNotFound
	}
	return nil
}
