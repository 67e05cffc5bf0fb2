package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/postloom/postloom/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error)
	MarkProcessing(ctx context.Context, id int64) (bool, error)
	MarkPosted(ctx context.Context, id int64, postedAt time.Time, platformPostID, warning string, metadata json.RawMessage) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	ResetStuckProcessing(ctx context.Context, olderThan time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	ListFailed(ctx context.Context, limit int) ([]*models.ScheduledPost, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, platform, caption, title, scheduled_at, status, posted_at, platform_post_id, warning, error_message, metadata, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	err := row.Scan(&post.ID, &post.UserID, &post.Platform, &post.Caption, &post.Title,
		&post.ScheduledAt, &post.Status, &post.PostedAt, &post.PlatformPostID,
		&post.Warning, &post.ErrorMessage, &post.Metadata, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + `
		FROM posts
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, now, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

// MarkProcessing claims a due post. The status guard makes the claim a no-op
// when another tick already moved the post forward; the caller must drop the
// post from its batch when false comes back.
func (r *postRepository) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusProcessing, time.Now(), id, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) MarkPosted(ctx context.Context, id int64, postedAt time.Time, platformPostID, warning string, metadata json.RawMessage) error {
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}
	query := `
		UPDATE posts
		SET status = $1,
			posted_at = $2,
			platform_post_id = $3,
			warning = $4,
			metadata = $5,
			updated_at = $6
		WHERE id = $7
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusPosted, postedAt, platformPostID, warning, []byte(metadata), time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE posts
		SET status = $1,
			error_message = $2,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, errorMessage, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// ResetStuckProcessing returns posts abandoned mid-dispatch by a crashed
// process to the scheduled pool. They get one more delivery attempt.
func (r *postRepository) ResetStuckProcessing(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE status = $3 AND updated_at < $4
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusScheduled, time.Now(), models.PostStatusProcessing, olderThan)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return affected, nil
}

func (r *postRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	query := `SELECT status, COUNT(*) FROM posts GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *postRepository) ListFailed(ctx context.Context, limit int) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + `
		FROM posts
		WHERE status = $1
		ORDER BY updated_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusFailed, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}
