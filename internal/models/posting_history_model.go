package models

import "time"

// PostingHistory is the per-attempt audit trail. One row per dispatch,
// whether it ended posted or failed.
type PostingHistory struct {
	ID           int64     `db:"id" json:"id"`
	AttemptID    string    `db:"attempt_id" json:"attempt_id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	PostID       int64     `db:"post_id" json:"post_id"`
	AccountID    int64     `db:"account_id" json:"account_id"`
	Outcome      string    `db:"outcome" json:"outcome"`
	ErrorMessage string    `db:"error_message" json:"error_message"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
