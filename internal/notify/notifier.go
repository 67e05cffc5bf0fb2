package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
)

// FailureMessage is what the transport delivers to the post's owner.
type FailureMessage struct {
	To             string    `json:"to"`
	PostID         int64     `json:"post_id"`
	Platform       string    `json:"platform"`
	ContentSnippet string    `json:"content_snippet"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	ErrorMessage   string    `json:"error_message"`
}

type Transport interface {
	Send(ctx context.Context, msg FailureMessage) error
}

// FailureNotifier tells a post's owner that a publish attempt failed. It is
// strictly best-effort: it runs only after the failed status is committed,
// and nothing it does can alter that status or escape to sibling posts.
type FailureNotifier struct {
	settings  repository.SettingsRepository
	users     repository.UserRepository
	transport Transport
}

func NewFailureNotifier(
	settings repository.SettingsRepository,
	users repository.UserRepository,
	transport Transport) *FailureNotifier {
	return &FailureNotifier{
		settings:  settings,
		users:     users,
		transport: transport,
	}
}

func (n *FailureNotifier) NotifyFailure(ctx context.Context, post *models.ScheduledPost, errorMessage string) {
	address, ok := n.resolveAddress(ctx, post.UserID)
	if !ok {
		return
	}

	msg := FailureMessage{
		To:             address,
		PostID:         post.ID,
		Platform:       post.Platform,
		ContentSnippet: snippet(post.Caption),
		ScheduledAt:    post.ScheduledAt,
		ErrorMessage:   errorMessage,
	}

	if err := n.transport.Send(ctx, msg); err != nil {
		slog.Warn("failure notification not delivered",
			"post_id", post.ID, "error", err.Error())
	}
}

// resolveAddress applies the preference: alerts may be switched off, an
// explicit alert address wins, and the account email is the fallback.
// No settings row means alerts stay on.
func (n *FailureNotifier) resolveAddress(ctx context.Context, userID int64) (string, bool) {
	settings, exists, err := n.settings.GetByUserID(ctx, userID)
	if err != nil {
		slog.Warn("could not load notification settings", "user_id", userID, "error", err.Error())
		return "", false
	}

	if exists {
		if !settings.FailureAlerts {
			return "", false
		}
		if settings.AlertEmail != "" {
			return settings.AlertEmail, true
		}
	}

	user, err := n.users.GetByID(ctx, userID)
	if err != nil {
		slog.Warn("could not load user for notification", "user_id", userID, "error", err.Error())
		return "", false
	}
	if user == nil || user.Email == "" {
		return "", false
	}

	return user.Email, true
}

func snippet(text string) string {
	const max = 80
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
