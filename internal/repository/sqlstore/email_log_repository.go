package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"draft-relay/internal/model"

	"github.com/jmoiron/sqlx"
)

type SQLEmailLogRepository struct {
	db *sqlx.DB
}

func NewSQLEmailLogRepository(db *sqlx.DB) *SQLEmailLogRepository {
	return &SQLEmailLogRepository{db: db}
}

func (r *SQLEmailLogRepository) Create(ctx context.Context, log *model.EmailLog) error {
	details, err := json.Marshal(log.Details)
	if err != nil {
		return fmt.Errorf("encoding log details: %w", err)
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO email_logs (id, account_id, draft_id, action, provider, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		log.ID, log.AccountID, log.DraftID, string(log.Action), log.Provider, string(details), ts(log.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting email log: %w", err)
	}
	return nil
}

// FindByAccount returns the newest entries first.
func (r *SQLEmailLogRepository) FindByAccount(ctx context.Context, accountID string, limit int) ([]*model.EmailLog, error) {
	query := `SELECT id, account_id, draft_id, action, provider, details, created_at
		FROM email_logs WHERE account_id = ? ORDER BY created_at DESC, id DESC`
	args := []interface{}{accountID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []emailLogRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing email logs: %w", err)
	}
	logs := make([]*model.EmailLog, 0, len(rows))
	for _, row := range rows {
		l, err := row.toModel()
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}
