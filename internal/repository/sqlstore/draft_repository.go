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

type SQLDraftRepository struct {
	db       *sqlx.DB
	claimTTL time.Duration
	now      func() time.Time
}

func NewSQLDraftRepository(db *sqlx.DB, claimTTL time.Duration) *SQLDraftRepository {
	return &SQLDraftRepository{db: db, claimTTL: claimTTL, now: time.Now}
}

func (r *SQLDraftRepository) CreateIfAbsent(ctx context.Context, accountID, sourceMessageID string) (bool, error) {
	now := ts(r.now())
	// a conflicting claim is only taken over when it is stale and never produced a draft
	query := r.db.Rebind(`
		INSERT INTO draft_claims (account_id, source_message_id, claimed_at, finalized)
		VALUES (?, ?, ?, FALSE)
		ON CONFLICT (account_id, source_message_id) DO UPDATE SET
			claimed_at = excluded.claimed_at
		WHERE draft_claims.finalized = FALSE AND draft_claims.claimed_at < ?`)
	res, err := r.db.ExecContext(ctx, query, accountID, sourceMessageID, now, now.Add(-r.claimTTL))
	if err != nil {
		return false, fmt.Errorf("claiming %s/%s: %w", accountID, sourceMessageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming %s/%s: %w", accountID, sourceMessageID, err)
	}
	return n == 1, nil
}

func (r *SQLDraftRepository) Finalize(ctx context.Context, draft *model.Draft) error {
	refs := draft.ThreadRefs.References
	if refs == nil {
		refs = []string{}
	}
	chain, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("encoding references: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning finalize: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, r.db.Rebind(`
		UPDATE draft_claims SET finalized = TRUE
		WHERE account_id = ? AND source_message_id = ? AND finalized = FALSE`),
		draft.AccountID, draft.SourceMessageID)
	if err != nil {
		return fmt.Errorf("finalizing claim: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("finalizing claim: %w", err)
	} else if n != 1 {
		return apperror.ErrInvalidState
	}

	var resolvedAt interface{}
	if draft.ResolvedAt != nil {
		resolvedAt = ts(*draft.ResolvedAt)
	}
	_, err = tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO drafts (`+draftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		draft.ID, draft.AccountID, draft.SourceMessageID, draft.ConversationID,
		draft.ThreadRefs.OriginalMessageID, string(chain), draft.From, draft.Subject,
		draft.OriginalText, draft.GeneratedText, draft.EditedText, string(draft.Status),
		ts(draft.CreatedAt), resolvedAt, draft.DispatchedMessageID)
	if err != nil {
		return fmt.Errorf("inserting draft: %w", err)
	}
	return tx.Commit()
}

func (r *SQLDraftRepository) Release(ctx context.Context, accountID, sourceMessageID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM draft_claims
		WHERE account_id = ? AND source_message_id = ? AND finalized = FALSE`),
		accountID, sourceMessageID)
	if err != nil {
		return fmt.Errorf("releasing claim %s/%s: %w", accountID, sourceMessageID, err)
	}
	return nil
}

func (r *SQLDraftRepository) FindByID(ctx context.Context, id string) (*model.Draft, error) {
	var row draftRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+draftColumns+` FROM drafts WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrDraftNotFound
		}
		return nil, err
	}
	return row.toModel()
}

func (r *SQLDraftRepository) FindByIDPrefix(ctx context.Context, accountID, prefix string) ([]*model.Draft, error) {
	var rows []draftRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT `+draftColumns+` FROM drafts
		WHERE account_id = ? AND id LIKE ? ESCAPE '\'
		ORDER BY id
		LIMIT 2`), accountID, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("finding drafts by prefix: %w", err)
	}
	return draftsFromRows(rows)
}

func (r *SQLDraftRepository) FindByAccount(ctx context.Context, filter model.DraftFilter) ([]*model.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE account_id = ?`
	args := []interface{}{filter.AccountID}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, ts(*filter.Since))
	}
	query += ` ORDER BY created_at DESC`

	var rows []draftRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	return draftsFromRows(rows)
}

func (r *SQLDraftRepository) SetEditedText(ctx context.Context, id, text string) (*model.Draft, error) {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE drafts SET edited_text = ? WHERE id = ? AND status = ?`),
		text, id, string(model.DraftStatusPending))
	if err != nil {
		return nil, fmt.Errorf("storing edited text: %w", err)
	}
	return r.FindByID(ctx, id)
}

func (r *SQLDraftRepository) TransitionUnlessTerminal(ctx context.Context, id string, transition model.DraftTransition) (*model.Draft, bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE drafts SET status = ?, resolved_at = ?, dispatched_message_id = ?
		WHERE id = ? AND status = ?`),
		string(transition.Status), ts(transition.ResolvedAt), transition.DispatchedMessageID,
		id, string(model.DraftStatusPending))
	if err != nil {
		return nil, false, fmt.Errorf("transitioning draft %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("transitioning draft %s: %w", id, err)
	}

	draft, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return draft, n == 1, nil
}
