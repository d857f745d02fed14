package utils

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// PostLister yields every post id.
type PostLister interface {
	AllIDs(ctx context.Context) ([]string, error)
}

// CountReconciler rewrites a post's comment counter from the stored comments.
type CountReconciler interface {
	ReconcileCount(ctx context.Context, postID string) (int64, error)
}

// CommentReconciler periodically repairs comment counters that drifted after a failed
// counter adjustment.
type CommentReconciler struct {
	posts    PostLister
	comments CountReconciler
	interval time.Duration
	log      *zap.Logger
}

// NewCommentReconciler builds a reconciler. A nil logger falls back to the global one.
func NewCommentReconciler(posts PostLister, comments CountReconciler, interval time.Duration, log *zap.Logger) *CommentReconciler {
	if log == nil {
		log = Logger
	}
	return &CommentReconciler{posts: posts, comments: comments, interval: interval, log: log}
}

// Start launches the background loop until ctx is cancelled. A non-positive interval disables it.
func (r *CommentReconciler) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce reconciles every post and returns how many were repaired without error.
func (r *CommentReconciler) RunOnce(ctx context.Context) int {
	ids, err := r.posts.AllIDs(ctx)
	if err != nil {
		r.log.Warn("comment reconcile: listing posts failed", zap.Error(err))
		return 0
	}
	done := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if _, err := r.comments.ReconcileCount(ctx, id); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			// deleted between listing and reconciling
			r.log.Debug("comment reconcile skipped post", zap.String("post_id", id), zap.Error(err))
			continue
		}
		done++
	}
	r.log.Debug("comment reconcile finished", zap.Int("posts", len(ids)), zap.Int("reconciled", done))
	return done
}
