package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/pkg/utils"
)

// FailureNotifier is the best-effort side channel invoked after a failed
// status update has been committed. Implementations swallow their own errors.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, post *models.ScheduledPost, errorMessage string)
}

type LoopOptions struct {
	BatchSize      int
	PublishTimeout time.Duration
}

// Loop is the tick orchestrator: fetch the due batch, claim each post,
// dispatch the batch concurrently, apply the verdicts, join before the next
// tick may start.
type Loop struct {
	fetcher    *Fetcher
	dispatcher *Dispatcher
	posts      repository.PostRepository
	accounts   repository.AccountRepository
	history    repository.HistoryRepository
	notifier   FailureNotifier
	opt        LoopOptions

	// held for the duration of a tick; a tick due while one is running is
	// skipped, not queued
	mu sync.Mutex
}

func NewLoop(
	fetcher *Fetcher,
	dispatcher *Dispatcher,
	posts repository.PostRepository,
	accounts repository.AccountRepository,
	history repository.HistoryRepository,
	notifier FailureNotifier,
	opt LoopOptions) *Loop {
	if opt.BatchSize <= 0 {
		opt.BatchSize = 20
	}
	if opt.PublishTimeout <= 0 {
		opt.PublishTimeout = 2 * time.Minute
	}
	return &Loop{
		fetcher:    fetcher,
		dispatcher: dispatcher,
		posts:      posts,
		accounts:   accounts,
		history:    history,
		notifier:   notifier,
		opt:        opt,
	}
}

// Tick is the cron entrypoint.
func (l *Loop) Tick() {
	if err := l.RunTick(context.Background()); err != nil {
		slog.Error("tick aborted", "error", err.Error())
	}
}

// RunTick processes one batch. A fetch error aborts the whole tick; nothing
// partial is attempted and the next tick retries naturally.
func (l *Loop) RunTick(ctx context.Context) error {
	if !l.mu.TryLock() {
		slog.Debug("previous tick still running, skipping")
		return nil
	}
	defer l.mu.Unlock()

	batch, err := l.fetcher.FetchDueBatch(ctx, time.Now(), l.opt.BatchSize)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	// Claim every post before any dispatch begins. The tick interval can be
	// shorter than one publish call, so without the eager processing mark the
	// next tick would fetch and dispatch the same post concurrently.
	claimed := batch[:0]
	for _, dp := range batch {
		ok, err := l.posts.MarkProcessing(ctx, dp.Post.ID)
		if err != nil {
			slog.Error("failed to claim post", "post_id", dp.Post.ID, "error", err.Error())
			continue
		}
		if !ok {
			// already moved forward by an earlier tick
			continue
		}
		claimed = append(claimed, dp)
	}

	var wg sync.WaitGroup
	for _, dp := range claimed {
		wg.Add(1)
		go func(dp DuePost) {
			defer wg.Done()
			l.processOne(ctx, dp)
		}(dp)
	}
	wg.Wait()

	return nil
}

func (l *Loop) processOne(ctx context.Context, dp DuePost) {
	// The timeout binds the adapter's network calls, not the status write.
	publishCtx, cancel := context.WithTimeout(ctx, l.opt.PublishTimeout)
	update := l.dispatcher.Dispatch(publishCtx, dp)
	cancel()

	l.apply(ctx, dp, update)
}

func (l *Loop) apply(ctx context.Context, dp DuePost, update StatusUpdate) {
	attemptID, _ := utils.NewAttemptID()

	if update.Status == models.PostStatusPosted {
		if err := l.posts.MarkPosted(ctx, update.PostID, update.PostedAt, update.PlatformPostID, update.Warning, update.Metadata); err != nil {
			slog.Error("failed to record posted status", "post_id", update.PostID, "error", err.Error())
		}
		if update.TierHint != "" {
			if err := l.accounts.SetTier(ctx, update.AccountID, update.TierHint); err != nil {
				slog.Warn("failed to record account tier", "account_id", update.AccountID, "error", err.Error())
			}
		}
		l.recordHistory(ctx, attemptID, dp, models.PostStatusPosted, "")
		return
	}

	if err := l.posts.MarkFailed(ctx, update.PostID, update.ErrorMessage); err != nil {
		slog.Error("failed to record failed status", "post_id", update.PostID, "error", err.Error())
	}
	l.recordHistory(ctx, attemptID, dp, models.PostStatusFailed, update.ErrorMessage)

	// Status is committed; from here the notifier can do no harm.
	l.notifyFailure(ctx, dp.Post, update.ErrorMessage)
}

func (l *Loop) notifyFailure(ctx context.Context, post *models.ScheduledPost, errorMessage string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("failure notifier panicked", "post_id", post.ID, "panic", r)
		}
	}()
	if l.notifier != nil {
		l.notifier.NotifyFailure(ctx, post, errorMessage)
	}
}

func (l *Loop) recordHistory(ctx context.Context, attemptID string, dp DuePost, outcome, errorMessage string) {
	if l.history == nil {
		return
	}
	_, err := l.history.Create(ctx, &models.PostingHistory{
		AttemptID:    attemptID,
		UserID:       dp.Post.UserID,
		PostID:       dp.Post.ID,
		AccountID:    dp.Account.ID,
		Outcome:      outcome,
		ErrorMessage: errorMessage,
	})
	if err != nil {
		slog.Warn("failed to save posting history", "post_id", dp.Post.ID, "error", err.Error())
	}
}
