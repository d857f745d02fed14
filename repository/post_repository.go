package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/healthbbs/models"
)

const (
	maxTitleRunes = 100
	scanBatchSize = 500

	// timePrecision matches DATETIME(3) columns.
	timePrecision = time.Millisecond
)

// Option configures a repository.
type Option func(*base)

// WithLogger attaches a logger. Repositories log nothing by default.
func WithLogger(l *zap.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.log = l
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

type base struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func newBase(db *gorm.DB, opts []Option) base {
	b := base{db: db, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b base) timestamp() time.Time {
	return b.now().UTC().Truncate(timePrecision)
}

// NewPost carries the caller-side input of PostRepository.Create.
type NewPost struct {
	ID       string
	UserID   string
	Category models.Category
	Title    string
	Content  string
	FileURLs []string
}

// PostUpdate carries the input of PostRepository.Update. A nil FileURLs keeps the stored list;
// a non-nil one (even empty) replaces it.
type PostUpdate struct {
	ID       string
	UserID   string
	Title    string
	Content  string
	Category models.Category
	FileURLs *[]string
}

// PostRepository owns post records. Every owner-gated write is a single conditional statement.
type PostRepository struct {
	base
}

// NewPostRepository creates a PostRepository on top of db.
func NewPostRepository(db *gorm.DB, opts ...Option) *PostRepository {
	return &PostRepository{base: newBase(db, opts)}
}

// NewPostID returns a fresh post identifier. The API layer needs it before uploading attachments.
func NewPostID() string {
	return uuid.NewString()
}

// ValidatePostFields checks the owner, title and board of a post before any write.
func ValidatePostFields(userID string, category models.Category, title string) error {
	ve := &ValidationError{}
	if strings.TrimSpace(userID) == "" {
		ve.add("user_id", "owner is required")
	}
	if n := utf8.RuneCountInString(title); n < 1 || n > maxTitleRunes {
		ve.add("title", "must be 1-100 characters")
	}
	if !category.Valid() {
		ve.add("post_type", "unknown board type")
	}
	return ve.orNil()
}

// Create stores a new post with zeroed counters and equal created/updated timestamps.
func (r *PostRepository) Create(ctx context.Context, in NewPost) (*models.Post, error) {
	if err := ValidatePostFields(in.UserID, in.Category, in.Title); err != nil {
		return nil, err
	}
	id := in.ID
	if id == "" {
		id = NewPostID()
	}
	urls := models.StringList(in.FileURLs)
	if urls == nil {
		urls = models.StringList{}
	}
	now := r.timestamp()
	post := &models.Post{
		ID:        id,
		UserID:    in.UserID,
		Category:  in.Category,
		Title:     in.Title,
		Content:   in.Content,
		FileURLs:  urls,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res := r.db.WithContext(ctx).Create(post)
	if res.Error != nil {
		if r.isDuplicate(ctx, res.Error, id) {
			return nil, ErrConflict
		}
		r.log.Error("post create failed", zap.String("post_id", id), zap.Error(res.Error))
		return nil, unavailable("create post", res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, unavailable("create post", errors.New("write not acknowledged"))
	}
	return post, nil
}

func (r *PostRepository) isDuplicate(ctx context.Context, err error, id string) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var n int64
	if cerr := r.db.WithContext(ctx).Model(&models.Post{}).Where("post_id = ?", id).Count(&n).Error; cerr != nil {
		return false
	}
	return n > 0
}

// ListByCategory returns the board's posts newest first using the category/created_at index.
func (r *PostRepository) ListByCategory(ctx context.Context, category models.Category) ([]models.Post, error) {
	if !category.Valid() {
		ve := &ValidationError{}
		ve.add("post_type", "unknown board type")
		return nil, ve
	}
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("post_type = ?", category).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, unavailable("list posts by category", err)
	}
	return posts, nil
}

// Get reads a post without touching its view counter.
func (r *PostRepository) Get(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Where("post_id = ?", id).Take(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, unavailable("get post", err)
	}
	return &post, nil
}

// GetDetail increments the view counter and returns the post as stored after the increment.
// A missing post is detected by the increment matching no row.
func (r *PostRepository) GetDetail(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("post_id = ?", id).
			UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
		if res.Error != nil {
			return unavailable("increment view count", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("post_id = ?", id).Take(&post).Error; err != nil {
			return unavailable("read post after increment", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrStorageUnavailable) {
			err = unavailable("get post detail", err)
		}
		return nil, err
	}
	return &post, nil
}

// Update rewrites title, content, board and optionally the attachment list, on the
// condition that the stored owner is u.UserID. It never touches stored attachment bytes.
func (r *PostRepository) Update(ctx context.Context, u PostUpdate) (*models.Post, error) {
	if err := ValidatePostFields(u.UserID, u.Category, u.Title); err != nil {
		return nil, err
	}
	values := map[string]interface{}{
		"title":      u.Title,
		"content":    u.Content,
		"post_type":  u.Category,
		"updated_at": r.timestamp(),
	}
	if u.FileURLs != nil {
		urls := models.StringList(*u.FileURLs)
		if urls == nil {
			urls = models.StringList{}
		}
		values["file_urls"] = urls
	}

	var post models.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("post_id = ? AND user_id = ?", u.ID, u.UserID).
			Updates(values)
		if res.Error != nil {
			return unavailable("update post", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrForbidden
		}
		if err := tx.Where("post_id = ?", u.ID).Take(&post).Error; err != nil {
			return unavailable("read post after update", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrForbidden) && !errors.Is(err, ErrStorageUnavailable) {
			err = unavailable("update post", err)
		}
		return nil, err
	}
	return &post, nil
}

// Delete removes the post record if owner owns it. Attachments and comments are left to the caller.
func (r *PostRepository) Delete(ctx context.Context, id, owner string) error {
	res := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", id, owner).
		Delete(&models.Post{})
	if res.Error != nil {
		return unavailable("delete post", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrForbidden
	}
	return nil
}

// Search scans every post and keeps those whose title or content contains keyword,
// compared literally and case-sensitively. The result is unordered.
func (r *PostRepository) Search(ctx context.Context, keyword string) ([]models.Post, error) {
	matches := []models.Post{}
	if keyword == "" {
		return matches, nil
	}
	err := r.scan(ctx, r.db.WithContext(ctx), func(p *models.Post) {
		if strings.Contains(p.Title, keyword) || strings.Contains(p.Content, keyword) {
			matches = append(matches, *p)
		}
	})
	if err != nil {
		return nil, unavailable("search posts", err)
	}
	return matches, nil
}

// ListByOwner returns the owner's posts sorted newest first after retrieval.
func (r *PostRepository) ListByOwner(ctx context.Context, owner string) ([]models.Post, error) {
	posts := []models.Post{}
	err := r.scan(ctx, r.db.WithContext(ctx).Where("user_id = ?", owner), func(p *models.Post) {
		posts = append(posts, *p)
	})
	if err != nil {
		return nil, unavailable("list posts by owner", err)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

// AllIDs returns every post id. Used by the comment-count reconciler.
func (r *PostRepository) AllIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Pluck("post_id", &ids).Error; err != nil {
		return nil, unavailable("list post ids", err)
	}
	return ids, nil
}

func (r *PostRepository) scan(ctx context.Context, q *gorm.DB, fn func(*models.Post)) error {
	var batch []models.Post
	res := q.FindInBatches(&batch, scanBatchSize, func(tx *gorm.DB, _ int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range batch {
			fn(&batch[i])
		}
		return nil
	})
	return res.Error
}

// adjustCommentCount moves feedback_count by delta in one statement. A decrement never
// takes the counter below zero.
func adjustCommentCount(ctx context.Context, db *gorm.DB, postID string, delta int64) error {
	q := db.WithContext(ctx).Model(&models.Post{}).Where("post_id = ?", postID)
	if delta < 0 {
		q = q.Where("feedback_count >= ?", -delta)
	}
	res := q.UpdateColumn("feedback_count", gorm.Expr("feedback_count + ?", delta))
	if res.Error != nil {
		return unavailable("adjust comment count", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
