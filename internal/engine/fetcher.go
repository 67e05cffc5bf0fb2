package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
)

// DuePost is one unit of work for a tick: the post, the single connected
// account it is matched to, and its resolved media references.
type DuePost struct {
	Post    *models.ScheduledPost
	Account *models.ConnectedAccount
	Media   []string
}

type Fetcher struct {
	posts    repository.PostRepository
	accounts repository.AccountRepository
	media    repository.MediaRepository
}

func NewFetcher(
	posts repository.PostRepository,
	accounts repository.AccountRepository,
	media repository.MediaRepository) *Fetcher {
	return &Fetcher{
		posts:    posts,
		accounts: accounts,
		media:    media,
	}
}

// FetchDueBatch returns due posts joined with their owner's connected
// account for the target platform. Three queries total regardless of batch
// size: the due posts, the owners' accounts, the batch's media refs.
//
// Posts whose owner has no account on the target platform are dropped from
// the batch, not failed. They stay scheduled and are picked up again once an
// account appears.
func (f *Fetcher) FetchDueBatch(ctx context.Context, now time.Time, limit int) ([]DuePost, error) {
	posts, err := f.posts.ListDue(ctx, now, limit)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}

	userIDs := make([]int64, 0, len(posts))
	seen := make(map[int64]bool)
	postIDs := make([]int64, 0, len(posts))
	for _, post := range posts {
		postIDs = append(postIDs, post.ID)
		if !seen[post.UserID] {
			seen[post.UserID] = true
			userIDs = append(userIDs, post.UserID)
		}
	}

	accounts, err := f.accounts.ListByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	mediaRefs, err := f.media.ListRefsByPostIDs(ctx, postIDs)
	if err != nil {
		return nil, err
	}

	type ownerPlatform struct {
		userID   int64
		platform string
	}
	byOwner := make(map[ownerPlatform]*models.ConnectedAccount, len(accounts))
	for _, acc := range accounts {
		byOwner[ownerPlatform{acc.UserID, acc.Platform}] = acc
	}

	batch := make([]DuePost, 0, len(posts))
	for _, post := range posts {
		account, ok := byOwner[ownerPlatform{post.UserID, post.Platform}]
		if !ok {
			slog.Debug("no connected account, leaving post scheduled",
				"post_id", post.ID, "platform", post.Platform)
			continue
		}
		batch = append(batch, DuePost{
			Post:    post,
			Account: account,
			Media:   mediaRefs[post.ID],
		})
	}

	return batch, nil
}
