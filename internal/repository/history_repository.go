package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/postloom/postloom/internal/models"
)

type HistoryRepository interface {
	Create(ctx context.Context, h *models.PostingHistory) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error)
}

type historyRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Create(ctx context.Context, h *models.PostingHistory) (int64, error) {
	query := `
		INSERT INTO posting_history (attempt_id, user_id, post_id, account_id, outcome, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, h.AttemptID, h.UserID, h.PostID, h.AccountID, h.Outcome, h.ErrorMessage).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *historyRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error) {
	query := `SELECT id, attempt_id, user_id, post_id, account_id, outcome, error_message, created_at FROM posting_history WHERE post_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var history []*models.PostingHistory
	for rows.Next() {
		var h models.PostingHistory
		err := rows.Scan(&h.ID, &h.AttemptID, &h.UserID, &h.PostID, &h.AccountID, &h.Outcome, &h.ErrorMessage, &h.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		history = append(history, &h)
	}
	return history, rows.Err()
}
