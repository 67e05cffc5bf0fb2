package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/postloom/postloom/internal/repository"
)

// ReconcileJob sweeps posts a crashed process left in processing. After
// sitting there longer than the configured age they go back to scheduled for
// one more delivery attempt; at-least-once is the accepted guarantee.
type ReconcileJob struct {
	posts      repository.PostRepository
	stuckAfter time.Duration
}

func NewReconcileJob(posts repository.PostRepository, stuckAfter time.Duration) *ReconcileJob {
	return &ReconcileJob{
		posts:      posts,
		stuckAfter: stuckAfter,
	}
}

func (j *ReconcileJob) ResetStuck() {
	ctx := context.Background()

	reset, err := j.posts.ResetStuckProcessing(ctx, time.Now().Add(-j.stuckAfter))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	if reset > 0 {
		slog.Warn("reset stuck processing posts", "count", reset)
	}
}
