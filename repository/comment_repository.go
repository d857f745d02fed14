package repository

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/healthbbs/models"
)

const (
	maxCommentRunes = 500
	cascadeBatch    = 25
)

// CommentWrite reports the outcome of a comment create or delete. The comment write
// and the parent counter adjustment are separate statements; CounterErr is set when
// the second one failed and the counter has drifted.
type CommentWrite struct {
	Comment    *models.Comment
	CounterErr error
}

// CascadeResult reports how a post's comments were removed. Failed > 0 means the
// cascade stopped short and some comments remain.
type CascadeResult struct {
	Listed  int
	Deleted int
	Failed  int
}

// CommentRepository owns comment records and the feedback_count field of their post.
type CommentRepository struct {
	base
}

// NewCommentRepository creates a CommentRepository on top of db.
func NewCommentRepository(db *gorm.DB, opts ...Option) *CommentRepository {
	return &CommentRepository{base: newBase(db, opts)}
}

// KeyOf returns the composite key of a stored comment.
func KeyOf(c *models.Comment) CommentKey {
	return CommentKey{CreatedNanos: c.CreatedNanos, AuthorTag: c.AuthorTag}
}

func withID(c *models.Comment) {
	c.CommentID = KeyOf(c).String()
}

// Create inserts a comment on an existing post, then bumps the post's comment counter.
func (r *CommentRepository) Create(ctx context.Context, postID, author, nickname, content string) (CommentWrite, error) {
	ve := &ValidationError{}
	if strings.TrimSpace(author) == "" {
		ve.add("user_id", "author is required")
	}
	if n := utf8.RuneCountInString(content); n < 1 || n > maxCommentRunes {
		ve.add("content", "must be 1-500 characters")
	}
	if err := ve.orNil(); err != nil {
		return CommentWrite{}, err
	}

	var exists int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("post_id = ?", postID).Count(&exists).Error; err != nil {
		return CommentWrite{}, unavailable("check parent post", err)
	}
	if exists == 0 {
		return CommentWrite{}, ErrNotFound
	}

	now := r.now()
	nanos := monotonicNanos(now)
	comment := &models.Comment{
		PostID:       postID,
		CreatedNanos: nanos,
		AuthorTag:    authorTag(author),
		UserID:       author,
		Nickname:     nickname,
		Content:      content,
		CreatedAt:    CommentKey{CreatedNanos: nanos}.Time().Truncate(timePrecision),
	}
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		r.log.Error("comment create failed", zap.String("post_id", postID), zap.Error(err))
		return CommentWrite{}, unavailable("create comment", err)
	}
	withID(comment)

	out := CommentWrite{Comment: comment}
	if err := adjustCommentCount(ctx, r.db, postID, 1); err != nil {
		r.log.Warn("comment counter increment failed",
			zap.String("post_id", postID), zap.String("comment_id", comment.CommentID), zap.Error(err))
		out.CounterErr = err
	}
	return out, nil
}

// ListByPost returns the post's comments oldest first.
func (r *CommentRepository) ListByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_nanos ASC").
		Order("author_tag ASC").
		Find(&comments).Error
	if err != nil {
		return nil, unavailable("list comments", err)
	}
	for i := range comments {
		withID(&comments[i])
	}
	return comments, nil
}

// Delete removes a comment if author wrote it, then decrements the post's comment counter.
func (r *CommentRepository) Delete(ctx context.Context, postID string, key CommentKey, author string) (CommentWrite, error) {
	res := r.db.WithContext(ctx).
		Where("post_id = ? AND created_nanos = ? AND author_tag = ? AND user_id = ?",
			postID, key.CreatedNanos, key.AuthorTag, author).
		Delete(&models.Comment{})
	if res.Error != nil {
		return CommentWrite{}, unavailable("delete comment", res.Error)
	}
	if res.RowsAffected == 0 {
		return CommentWrite{}, ErrForbidden
	}

	out := CommentWrite{}
	if err := adjustCommentCount(ctx, r.db, postID, -1); err != nil {
		r.log.Warn("comment counter decrement failed",
			zap.String("post_id", postID), zap.String("comment_id", key.String()), zap.Error(err))
		out.CounterErr = err
	}
	return out, nil
}

// DeleteAllForPost removes every comment of a post in batches. It keeps going after a
// failed batch and reports the counts; it does not touch the post's counter.
func (r *CommentRepository) DeleteAllForPost(ctx context.Context, postID string) (CascadeResult, error) {
	var keys []models.Comment
	err := r.db.WithContext(ctx).
		Select("post_id", "created_nanos", "author_tag").
		Where("post_id = ?", postID).
		Find(&keys).Error
	if err != nil {
		return CascadeResult{}, unavailable("list comments for cascade", err)
	}

	result := CascadeResult{Listed: len(keys)}
	for start := 0; start < len(keys); start += cascadeBatch {
		end := start + cascadeBatch
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]
		n, err := r.deleteBatch(ctx, postID, chunk)
		result.Deleted += n
		if err != nil {
			result.Failed += len(chunk) - n
			r.log.Warn("comment cascade batch failed",
				zap.String("post_id", postID), zap.Int("batch_size", len(chunk)), zap.Error(err))
		}
	}
	if result.Failed > 0 {
		r.log.Warn("comment cascade incomplete", zap.String("post_id", postID),
			zap.Int("deleted", result.Deleted), zap.Int("failed", result.Failed))
	}
	return result, nil
}

func (r *CommentRepository) deleteBatch(ctx context.Context, postID string, chunk []models.Comment) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	nanos := make([]int64, 0, len(chunk))
	for _, c := range chunk {
		nanos = append(nanos, c.CreatedNanos)
	}
	res := r.db.WithContext(ctx).
		Where("post_id = ? AND created_nanos IN ?", postID, nanos).
		Delete(&models.Comment{})
	if res.Error != nil {
		return 0, res.Error
	}
	if int(res.RowsAffected) > len(chunk) {
		return len(chunk), nil
	}
	return int(res.RowsAffected), nil
}

// ReconcileCount sets the post's feedback_count to the number of stored comments and
// returns that number.
func (r *CommentRepository) ReconcileCount(ctx context.Context, postID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Comment{}).Where("post_id = ?", postID).Count(&n).Error; err != nil {
			return unavailable("count comments", err)
		}
		res := tx.Model(&models.Post{}).Where("post_id = ?", postID).UpdateColumn("feedback_count", n)
		if res.Error != nil {
			return unavailable("reconcile comment count", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrStorageUnavailable) {
			err = unavailable("reconcile comment count", err)
		}
		return 0, err
	}
	return n, nil
}
