package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/lib/pq"
)

type MediaRepository interface {
	ListRefsByPostIDs(ctx context.Context, postIDs []int64) (map[int64][]string, error)
}

type mediaRepository struct {
	db *sql.DB
}

func NewMediaRepository(db *sql.DB) MediaRepository {
	return &mediaRepository{db: db}
}

// ListRefsByPostIDs resolves stored media references for a whole batch of
// posts in one round trip, ordered the way the user arranged them.
func (r *mediaRepository) ListRefsByPostIDs(ctx context.Context, postIDs []int64) (map[int64][]string, error) {
	refs := make(map[int64][]string)
	if len(postIDs) == 0 {
		return refs, nil
	}

	query := `
		SELECT pm.post_id, ma.file_ref
		FROM post_media pm
		JOIN media_assets ma ON ma.id = pm.asset_id
		WHERE pm.post_id = ANY($1)
		ORDER BY pm.post_id, pm.display_order
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(postIDs))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var postID int64
		var ref string
		if err := rows.Scan(&postID, &ref); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		refs[postID] = append(refs[postID], ref)
	}
	return refs, rows.Err()
}
