package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

type ScheduledPost struct {
	ID             int64           `db:"id" json:"id"`
	UserID         int64           `db:"user_id" json:"user_id"`
	Platform       string          `db:"platform" json:"platform"`
	Caption        string          `db:"caption" json:"caption"`
	Title          string          `db:"title" json:"title"`
	ScheduledAt    time.Time       `db:"scheduled_at" json:"scheduled_at"`
	Status         string          `db:"status" json:"status"`
	PostedAt       sql.NullTime    `db:"posted_at" json:"posted_at"`
	PlatformPostID string          `db:"platform_post_id" json:"platform_post_id"`
	Warning        string          `db:"warning" json:"warning"`
	ErrorMessage   string          `db:"error_message" json:"error_message"`
	Metadata       json.RawMessage `db:"metadata" json:"metadata"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

type MediaAsset struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	FileName  string    `db:"file_name"`
	FileType  string    `db:"file_type"`
	FileSize  int64     `db:"file_size"`
	FileRef   string    `db:"file_ref"`
	CreatedAt time.Time `db:"created_at"`
}

type PostMedia struct {
	PostID       int64     `db:"post_id"`
	AssetID      int64     `db:"asset_id"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
}

// Status transitions are forward-only: scheduled -> processing -> posted|failed.
const (
	PostStatusScheduled  = "scheduled"
	PostStatusProcessing = "processing"
	PostStatusPosted     = "posted"
	PostStatusFailed     = "failed"
)
