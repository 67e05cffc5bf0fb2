package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	config "github.com/postloom/postloom/configs"
	"github.com/stretchr/testify/require"
)

func testMailer(serverURL string) *Mailer {
	return &Mailer{
		cfg: config.Config{
			ResendAPIKey: "re_test_key",
			EmailFrom:    "alerts@postloom.app",
		},
		client: http.DefaultClient,
		url:    serverURL,
	}
}

func testMessage() FailureMessage {
	return FailureMessage{
		To:             "owner@example.com",
		PostID:         7,
		Platform:       "twitter",
		ContentSnippet: "a post that did not make it",
		ScheduledAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		ErrorMessage:   "rate limited",
	}
}

func TestFailureEmailTaskRoundTrip(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	msg := testMessage()
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	task := asynq.NewTask(TaskTypeFailureEmail, payload)

	m := testMailer(server.URL)
	require.NoError(t, m.HandleFailureEmailTask(context.Background(), task))

	require.Equal(t, "Bearer re_test_key", gotAuth)
	require.Equal(t, "alerts@postloom.app", gotBody["from"])
	require.Equal(t, []any{"owner@example.com"}, gotBody["to"])
	require.Contains(t, gotBody["subject"], "twitter")

	text, ok := gotBody["text"].(string)
	require.True(t, ok)
	require.Contains(t, text, "rate limited")
	require.Contains(t, text, "a post that did not make it")
}

func TestFailureEmailTaskBadPayload(t *testing.T) {
	m := testMailer("http://unused.invalid")
	task := asynq.NewTask(TaskTypeFailureEmail, []byte("not json"))

	require.Error(t, m.HandleFailureEmailTask(context.Background(), task))
}

func TestFailureEmailNon200SurfacesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid recipient"}`))
	}))
	defer server.Close()

	payload, err := json.Marshal(testMessage())
	require.NoError(t, err)
	task := asynq.NewTask(TaskTypeFailureEmail, payload)

	m := testMailer(server.URL)
	err = m.HandleFailureEmailTask(context.Background(), task)
	require.Error(t, err)
	require.Contains(t, err.Error(), "422")
	require.Contains(t, err.Error(), "invalid recipient")
}

func TestFailureEmailDroppedWithoutAPIKey(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	payload, err := json.Marshal(testMessage())
	require.NoError(t, err)
	task := asynq.NewTask(TaskTypeFailureEmail, payload)

	m := testMailer(server.URL)
	m.cfg.ResendAPIKey = ""
	require.NoError(t, m.HandleFailureEmailTask(context.Background(), task))
	require.Zero(t, requests)
}
