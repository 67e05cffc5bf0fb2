package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/postloom/postloom/internal/engine"
	"github.com/postloom/postloom/internal/models"
	"github.com/stretchr/testify/require"
)

func TestFetchDueBatchJoinsAccountAndMedia(t *testing.T) {
	posts := newFakePostRepo(
		scheduledPost(1, 10, "twitter"),
		scheduledPost(2, 10, "instagram"),
	)
	accounts := newFakeAccountRepo(
		connectedAccount(5, 10, "twitter"),
		connectedAccount(6, 10, "instagram"),
	)
	media := &fakeMediaRepo{refs: map[int64][]string{2: {"uploads/a.jpg", "uploads/b.jpg"}}}

	f := engine.NewFetcher(posts, accounts, media)
	batch, err := f.FetchDueBatch(context.Background(), time.Now(), 20)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	byPost := make(map[int64]engine.DuePost)
	for _, dp := range batch {
		byPost[dp.Post.ID] = dp
	}
	require.Equal(t, int64(5), byPost[1].Account.ID)
	require.Empty(t, byPost[1].Media)
	require.Equal(t, int64(6), byPost[2].Account.ID)
	require.Equal(t, []string{"uploads/a.jpg", "uploads/b.jpg"}, byPost[2].Media)
}

func TestFetchDueBatchDropsPostWithoutAccount(t *testing.T) {
	posts := newFakePostRepo(
		scheduledPost(1, 10, "twitter"),
		scheduledPost(2, 11, "twitter"),
	)
	// user 11 has no twitter account, only linkedin
	accounts := newFakeAccountRepo(
		connectedAccount(5, 10, "twitter"),
		connectedAccount(6, 11, "linkedin"),
	)

	f := engine.NewFetcher(posts, accounts, &fakeMediaRepo{})
	batch, err := f.FetchDueBatch(context.Background(), time.Now(), 20)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.Equal(t, int64(1), batch[0].Post.ID)

	// the dropped post is untouched, not failed
	require.Equal(t, models.PostStatusScheduled, posts.get(2).Status)
}

func TestFetchDueBatchSkipsFuturePosts(t *testing.T) {
	future := scheduledPost(3, 10, "twitter")
	future.ScheduledAt = time.Now().Add(time.Hour)

	posts := newFakePostRepo(scheduledPost(1, 10, "twitter"), future)
	accounts := newFakeAccountRepo(connectedAccount(5, 10, "twitter"))

	f := engine.NewFetcher(posts, accounts, &fakeMediaRepo{})
	batch, err := f.FetchDueBatch(context.Background(), time.Now(), 20)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.Equal(t, int64(1), batch[0].Post.ID)
}

func TestFetchDueBatchHonorsLimit(t *testing.T) {
	earlier := scheduledPost(1, 10, "twitter")
	earlier.ScheduledAt = time.Now().Add(-time.Hour)

	posts := newFakePostRepo(earlier, scheduledPost(2, 10, "twitter"))
	accounts := newFakeAccountRepo(connectedAccount(5, 10, "twitter"))

	f := engine.NewFetcher(posts, accounts, &fakeMediaRepo{})
	batch, err := f.FetchDueBatch(context.Background(), time.Now(), 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.Equal(t, int64(1), batch[0].Post.ID)
}
