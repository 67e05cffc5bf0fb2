package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/postloom/postloom/internal/models"
)

type AccountRepository interface {
	GetByID(ctx context.Context, id int64) (*models.ConnectedAccount, error)
	ListByUserIDs(ctx context.Context, userIDs []int64) ([]*models.ConnectedAccount, error)
	SetTier(ctx context.Context, id int64, tier string) error
}

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `id, user_id, platform, account_id, account_name, account_username, access_token, refresh_token, token_expires_at, tier, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.ConnectedAccount, error) {
	var sa models.ConnectedAccount
	err := row.Scan(&sa.ID, &sa.UserID, &sa.Platform, &sa.AccountID, &sa.AccountName,
		&sa.AccountUsername, &sa.AccessToken, &sa.RefreshToken, &sa.TokenExpiresAt,
		&sa.Tier, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*models.ConnectedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM connected_accounts WHERE id = $1`
	sa, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return sa, nil
}

// ListByUserIDs is the one batched account lookup per tick; the fetcher joins
// the result in memory instead of querying once per post.
func (r *accountRepository) ListByUserIDs(ctx context.Context, userIDs []int64) ([]*models.ConnectedAccount, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + accountColumns + ` FROM connected_accounts WHERE user_id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.ConnectedAccount
	for rows.Next() {
		sa, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}
	return accounts, rows.Err()
}

func (r *accountRepository) SetTier(ctx context.Context, id int64, tier string) error {
	query := `
		UPDATE connected_accounts
		SET tier = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, tier, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
