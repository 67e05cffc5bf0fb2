package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	config "github.com/postloom/postloom/configs"
)

const TaskTypeFailureEmail = "notification:failure_email"

const resendEmailURL = "https://api.resend.com/emails"

// QueueTransport hands failure messages to the asynq queue so email delivery
// happens off the publishing path. A full queue or dead redis surfaces as a
// send error the notifier swallows.
type QueueTransport struct {
	client *asynq.Client
}

func NewQueueTransport(client *asynq.Client) *QueueTransport {
	return &QueueTransport{client: client}
}

func (t *QueueTransport) Send(ctx context.Context, msg FailureMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeFailureEmail, payload)
	_, err = t.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
	return err
}

// Mailer is the asynq-side consumer: it renders the failure email and posts
// it to the Resend API.
type Mailer struct {
	cfg    config.Config
	client *http.Client
	url    string
}

func NewMailer(cfg config.Config) *Mailer {
	return &Mailer{cfg: cfg, client: http.DefaultClient, url: resendEmailURL}
}

func (m *Mailer) HandleFailureEmailTask(ctx context.Context, task *asynq.Task) error {
	var msg FailureMessage
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		return err
	}

	return m.send(ctx, msg)
}

func (m *Mailer) send(ctx context.Context, msg FailureMessage) error {
	if m.cfg.ResendAPIKey == "" {
		slog.Warn("no email api key configured, dropping failure notification", "post_id", msg.PostID)
		return nil
	}

	subject := fmt.Sprintf("Your %s post could not be published", msg.Platform)
	text := fmt.Sprintf(
		"Your post scheduled for %s was not published.\n\nPost: %q\nPlatform: %s\nReason: %s\n\nYou can edit and reschedule it from your dashboard.",
		msg.ScheduledAt.Format("Jan 2, 2006 15:04 MST"),
		msg.ContentSnippet,
		msg.Platform,
		msg.ErrorMessage,
	)

	payload := map[string]any{
		"from":    m.cfg.EmailFrom,
		"to":      []string{msg.To},
		"subject": subject,
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.ResendAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email api returned status %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
