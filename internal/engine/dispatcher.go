package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/platform"
	"github.com/postloom/postloom/internal/vault"
)

// StatusUpdate is the dispatch verdict for one post: either posted with the
// platform-assigned id, or failed with the adapter's message verbatim.
type StatusUpdate struct {
	PostID         int64
	AccountID      int64
	UserID         int64
	Status         string
	PostedAt       time.Time
	PlatformPostID string
	Warning        string
	ErrorMessage   string
	TierHint       string
	Metadata       json.RawMessage
}

type Dispatcher struct {
	registry *platform.Registry
	tokens   *vault.Vault
}

func NewDispatcher(registry *platform.Registry, tokens *vault.Vault) *Dispatcher {
	return &Dispatcher{registry: registry, tokens: tokens}
}

// Dispatch never returns an error and never panics past its own boundary;
// one post's blowup must not take down its siblings in the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, dp DuePost) (update StatusUpdate) {
	update = StatusUpdate{
		PostID:    dp.Post.ID,
		AccountID: dp.Account.ID,
		UserID:    dp.Post.UserID,
	}

	defer func() {
		if r := recover(); r != nil {
			update.Status = models.PostStatusFailed
			update.ErrorMessage = fmt.Sprintf("unexpected panic during dispatch: %v", r)
		}
	}()

	adapter, err := d.registry.Lookup(dp.Post.Platform)
	if err != nil {
		update.Status = models.PostStatusFailed
		update.ErrorMessage = err.Error()
		return update
	}

	// Decrypted immediately before use, once per post. The plaintext token
	// lives only for the duration of this call.
	accessToken := d.tokens.Decrypt(dp.Account.AccessToken)
	if d.tokens.StillSealed(accessToken) {
		update.Status = models.PostStatusFailed
		update.ErrorMessage = "stored credential could not be decrypted"
		return update
	}

	result, err := adapter.Publish(ctx, platform.Content{
		Text:  dp.Post.Caption,
		Title: dp.Post.Title,
		Media: dp.Media,
	}, platform.Credential{
		AccountID:   dp.Account.AccountID,
		AccessToken: accessToken,
	})
	if err != nil {
		update.Status = models.PostStatusFailed
		update.ErrorMessage = err.Error()
		return update
	}

	update.Status = models.PostStatusPosted
	update.PostedAt = time.Now()
	update.PlatformPostID = result.PlatformPostID
	update.Warning = result.Warning
	update.TierHint = result.TierHint

	meta := map[string]string{"platform_id": result.PlatformPostID}
	if result.TierHint != "" {
		meta["tier"] = result.TierHint
	}
	update.Metadata, _ = json.Marshal(meta)

	return update
}
