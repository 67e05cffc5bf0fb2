package engine_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/postloom/postloom/internal/engine"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/platform"
	"github.com/postloom/postloom/internal/vault"
)

func noVault() *vault.Vault { return vault.New("") }

type fakePostRepo struct {
	mu    sync.Mutex
	posts map[int64]*models.ScheduledPost
}

func newFakePostRepo(posts ...*models.ScheduledPost) *fakePostRepo {
	r := &fakePostRepo{posts: make(map[int64]*models.ScheduledPost)}
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return r
}

func (r *fakePostRepo) get(id int64) models.ScheduledPost {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.posts[id]
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (r *fakePostRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*models.ScheduledPost
	for _, p := range r.posts {
		if p.Status == models.PostStatusScheduled && !p.ScheduledAt.After(now) {
			copied := *p
			due = append(due, &copied)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(due[j].ScheduledAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *fakePostRepo) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusScheduled {
		return false, nil
	}
	p.Status = models.PostStatusProcessing
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakePostRepo) MarkPosted(ctx context.Context, id int64, postedAt time.Time, platformPostID, warning string, metadata json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.posts[id]
	p.Status = models.PostStatusPosted
	p.PostedAt.Time, p.PostedAt.Valid = postedAt, true
	p.PlatformPostID = platformPostID
	p.Warning = warning
	p.Metadata = metadata
	p.UpdatedAt = time.Now()
	return nil
}

func (r *fakePostRepo) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.posts[id]
	p.Status = models.PostStatusFailed
	p.ErrorMessage = errorMessage
	p.UpdatedAt = time.Now()
	return nil
}

func (r *fakePostRepo) ResetStuckProcessing(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reset int64
	for _, p := range r.posts {
		if p.Status == models.PostStatusProcessing && p.UpdatedAt.Before(olderThan) {
			p.Status = models.PostStatusScheduled
			p.UpdatedAt = time.Now()
			reset++
		}
	}
	return reset, nil
}

func (r *fakePostRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int64)
	for _, p := range r.posts {
		counts[p.Status]++
	}
	return counts, nil
}

func (r *fakePostRepo) ListFailed(ctx context.Context, limit int) ([]*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failed []*models.ScheduledPost
	for _, p := range r.posts {
		if p.Status == models.PostStatusFailed {
			copied := *p
			failed = append(failed, &copied)
		}
	}
	if len(failed) > limit {
		failed = failed[:limit]
	}
	return failed, nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts []*models.ConnectedAccount
	tiers    map[int64]string
}

func newFakeAccountRepo(accounts ...*models.ConnectedAccount) *fakeAccountRepo {
	return &fakeAccountRepo{accounts: accounts, tiers: make(map[int64]string)}
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.ConnectedAccount, error) {
	for _, a := range r.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) ListByUserIDs(ctx context.Context, userIDs []int64) ([]*models.ConnectedAccount, error) {
	wanted := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	var out []*models.ConnectedAccount
	for _, a := range r.accounts {
		if wanted[a.UserID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) SetTier(ctx context.Context, id int64, tier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tiers[id] = tier
	return nil
}

type fakeMediaRepo struct {
	refs map[int64][]string
}

func (r *fakeMediaRepo) ListRefsByPostIDs(ctx context.Context, postIDs []int64) (map[int64][]string, error) {
	if r.refs == nil {
		return map[int64][]string{}, nil
	}
	return r.refs, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	records []*models.PostingHistory
}

func (r *fakeHistoryRepo) Create(ctx context.Context, h *models.PostingHistory) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, h)
	return int64(len(r.records)), nil
}

func (r *fakeHistoryRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostingHistory
	for _, h := range r.records {
		if h.PostID == postID {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeAdapter struct {
	name    string
	publish func(ctx context.Context, content platform.Content, cred platform.Credential) (*platform.PublishResult, error)
}

func (a *fakeAdapter) Platform() string { return a.name }

func (a *fakeAdapter) Publish(ctx context.Context, content platform.Content, cred platform.Credential) (*platform.PublishResult, error) {
	return a.publish(ctx, content, cred)
}

type notification struct {
	postID  int64
	message string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (n *fakeNotifier) NotifyFailure(ctx context.Context, post *models.ScheduledPost, errorMessage string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notification{postID: post.ID, message: errorMessage})
}

func (n *fakeNotifier) notifications() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.calls...)
}

func scheduledPost(id, userID int64, platformName string) *models.ScheduledPost {
	return &models.ScheduledPost{
		ID:          id,
		UserID:      userID,
		Platform:    platformName,
		Caption:     "hello world",
		ScheduledAt: time.Now().Add(-time.Second),
		Status:      models.PostStatusScheduled,
	}
}

func connectedAccount(id, userID int64, platformName string) *models.ConnectedAccount {
	return &models.ConnectedAccount{
		ID:          id,
		UserID:      userID,
		Platform:    platformName,
		AccountID:   "acct-1",
		AccessToken: "tok_plain",
	}
}

func newLoop(posts *fakePostRepo, accounts *fakeAccountRepo, history *fakeHistoryRepo, notifier engine.FailureNotifier, media *fakeMediaRepo, adapters ...platform.Adapter) *engine.Loop {
	if media == nil {
		media = &fakeMediaRepo{}
	}
	fetcher := engine.NewFetcher(posts, accounts, media)
	dispatcher := engine.NewDispatcher(platform.NewRegistry(adapters...), noVault())
	return engine.NewLoop(fetcher, dispatcher, posts, accounts, history, notifier, engine.LoopOptions{
		BatchSize:      20,
		PublishTimeout: 5 * time.Second,
	})
}
