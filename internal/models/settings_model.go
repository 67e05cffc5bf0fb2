package models

import "time"

type NotificationSettings struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	FailureAlerts bool      `db:"failure_alerts" json:"failure_alerts"`
	AlertEmail    string    `db:"alert_email" json:"alert_email"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
