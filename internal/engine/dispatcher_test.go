package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/postloom/postloom/internal/engine"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/platform"
	"github.com/postloom/postloom/internal/vault"
	"github.com/stretchr/testify/require"
)

func duePost(platformName string) engine.DuePost {
	return engine.DuePost{
		Post:    scheduledPost(1, 10, platformName),
		Account: connectedAccount(5, 10, platformName),
	}
}

func TestDispatchSuccess(t *testing.T) {
	adapter := &fakeAdapter{
		name: "twitter",
		publish: func(ctx context.Context, content platform.Content, cred platform.Credential) (*platform.PublishResult, error) {
			require.Equal(t, "hello world", content.Text)
			require.Equal(t, "tok_plain", cred.AccessToken)
			return &platform.PublishResult{PlatformPostID: "123"}, nil
		},
	}
	d := engine.NewDispatcher(platform.NewRegistry(adapter), noVault())

	update := d.Dispatch(context.Background(), duePost("twitter"))

	require.Equal(t, models.PostStatusPosted, update.Status)
	require.Equal(t, "123", update.PlatformPostID)
	require.False(t, update.PostedAt.IsZero())

	var meta map[string]string
	require.NoError(t, json.Unmarshal(update.Metadata, &meta))
	require.Equal(t, "123", meta["platform_id"])
}

func TestDispatchUnknownPlatform(t *testing.T) {
	d := engine.NewDispatcher(platform.NewRegistry(), noVault())

	update := d.Dispatch(context.Background(), duePost("myspace"))

	require.Equal(t, models.PostStatusFailed, update.Status)
	require.Contains(t, update.ErrorMessage, "myspace")
	require.Contains(t, update.ErrorMessage, "not configured")
}

func TestDispatchAdapterErrorVerbatim(t *testing.T) {
	adapter := &fakeAdapter{
		name: "twitter",
		publish: func(ctx context.Context, content platform.Content, cred platform.Credential) (*platform.PublishResult, error) {
			return nil, errors.New("rate limited")
		},
	}
	d := engine.NewDispatcher(platform.NewRegistry(adapter), noVault())

	update := d.Dispatch(context.Background(), duePost("twitter"))

	require.Equal(t, models.PostStatusFailed, update.Status)
	require.Equal(t, "rate limited", update.ErrorMessage)
}

func TestDispatchRecoversPanic(t *testing.T) {
	adapter := &fakeAdapter{
		name: "twitter",
		publish: func(ctx context.Context, content platform.Content, cred platform.Credential) (*platform.PublishResult, error) {
			panic("adapter bug")
		},
	}
	d := engine.NewDispatcher(platform.NewRegistry(adapter), noVault())

	update := d.Dispatch(context.Background(), duePost("twitter"))

	require.Equal(t, models.PostStatusFailed, update.Status)
	require.Contains(t, update.ErrorMessage, "adapter bug")
}

func TestDispatchUndecryptableCredential(t *testing.T) {
	sealed, err := vault.New("another-key").Encrypt("tok_secret")
	require.NoError(t, err)

	adapter := &fakeAdapter{
		name: "twitter",
		publish: func(ctx context.Context, content platform.Content, cred platform.Credential) (*platform.PublishResult, error) {
			t.Fatal("publish must not be reached with a sealed credential")
			return nil, nil
		},
	}
	d := engine.NewDispatcher(platform.NewRegistry(adapter), vault.New("engine-key"))

	dp := duePost("twitter")
	dp.Account.AccessToken = sealed
	update := d.Dispatch(context.Background(), dp)

	require.Equal(t, models.PostStatusFailed, update.Status)
	require.Equal(t, "stored credential could not be decrypted", update.ErrorMessage)
}

func TestDispatchLegacyPlaintextCredential(t *testing.T) {
	var got string
	adapter := &fakeAdapter{
		name: "twitter",
		publish: func(ctx context.Context, content platform.Content, cred platform.Credential) (*platform.PublishResult, error) {
			got = cred.AccessToken
			return &platform.PublishResult{PlatformPostID: "77"}, nil
		},
	}
	d := engine.NewDispatcher(platform.NewRegistry(adapter), vault.New("engine-key"))

	update := d.Dispatch(context.Background(), duePost("twitter"))

	require.Equal(t, models.PostStatusPosted, update.Status)
	require.Equal(t, "tok_plain", got)
}

func TestDispatchTierHint(t *testing.T) {
	adapter := &fakeAdapter{
		name: "twitter",
		publish: func(ctx context.Context, content platform.Content, cred platform.Credential) (*platform.PublishResult, error) {
			return &platform.PublishResult{PlatformPostID: "9", TierHint: "elevated"}, nil
		},
	}
	d := engine.NewDispatcher(platform.NewRegistry(adapter), noVault())

	update := d.Dispatch(context.Background(), duePost("twitter"))

	require.Equal(t, "elevated", update.TierHint)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(update.Metadata, &meta))
	require.Equal(t, "elevated", meta["tier"])
}
