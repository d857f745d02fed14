package controllers

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/healthbbs/models"
	"github.com/cppla/healthbbs/repository"
	"github.com/cppla/healthbbs/storage"
	"github.com/cppla/healthbbs/utils"
)

// postFormFields are the only form keys accepted by create and update.
var postFormFields = map[string]bool{"title": true, "content": true, "post_type": true}

const postFilesField = "files"

// PostController manages posts and the attachments they reference.
type PostController struct {
	posts    *repository.PostRepository
	comments *repository.CommentRepository
	store    *storage.AttachmentStore
	maxBytes int64
}

// NewPostController creates a new PostController instance. maxBytes caps a single attachment.
func NewPostController(posts *repository.PostRepository, comments *repository.CommentRepository, store *storage.AttachmentStore, maxBytes int64) *PostController {
	return &PostController{posts: posts, comments: comments, store: store, maxBytes: maxBytes}
}

type postForm struct {
	Title    string                  `form:"title" binding:"required"`
	Content  string                  `form:"content"`
	PostType string                  `form:"post_type" binding:"required"`
	Files    []*multipart.FileHeader `form:"files"`
}

// bindPostForm binds a multipart or urlencoded post form and rejects unknown fields.
func bindPostForm(ctx *gin.Context) (*postForm, bool) {
	var form postForm
	if err := ctx.ShouldBind(&form); err != nil {
		bindingFailed(ctx, err)
		return nil, false
	}

	var unknown []repository.FieldError
	for key := range ctx.Request.PostForm {
		if !postFormFields[key] {
			unknown = append(unknown, repository.FieldError{Field: key, Reason: "unknown field"})
		}
	}
	if mf := ctx.Request.MultipartForm; mf != nil {
		for key := range mf.File {
			if key != postFilesField {
				unknown = append(unknown, repository.FieldError{Field: key, Reason: "unknown field"})
			}
		}
	}
	if len(unknown) > 0 {
		sort.Slice(unknown, func(i, j int) bool { return unknown[i].Field < unknown[j].Field })
		utils.ValidationFailed(ctx, http.StatusBadRequest, 40002, unknown)
		return nil, false
	}

	form.Title = strings.TrimSpace(form.Title)
	return &form, true
}

// stripMarkup runs after the length checks so limits apply to the text as submitted.
func (f *postForm) stripMarkup() {
	f.Title = utils.Sanitize(f.Title)
	f.Content = utils.Sanitize(f.Content)
}

// readUploads loads every non-empty file part into memory, reading at most one byte past
// the limit so oversized parts are detected without buffering them entirely.
func (p *PostController) readUploads(files []*multipart.FileHeader) ([]storage.Upload, error) {
	uploads := make([]storage.Upload, 0, len(files))
	for _, fh := range files {
		if fh == nil || fh.Filename == "" {
			continue
		}
		if p.maxBytes > 0 && fh.Size > p.maxBytes {
			return nil, storage.ErrTooLarge
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		var r io.Reader = f
		if p.maxBytes > 0 {
			r = io.LimitReader(f, p.maxBytes+1)
		}
		data, err := io.ReadAll(r)
		f.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, storage.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}

// CreatePost stores the attachments under a fresh post id, then writes the post record.
func (p *PostController) CreatePost(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	form, ok := bindPostForm(ctx)
	if !ok {
		return
	}
	category := models.Category(form.PostType)
	if err := repository.ValidatePostFields(user.Email, category, form.Title); err != nil {
		validationFailed(ctx, err)
		return
	}
	form.stripMarkup()

	uploads, err := p.readUploads(form.Files)
	if err != nil {
		uploadFailed(ctx, err)
		return
	}

	reqCtx := ctx.Request.Context()
	postID := repository.NewPostID()
	locations, err := p.store.StoreAll(reqCtx, postID, uploads)
	if err != nil {
		uploadFailed(ctx, err)
		return
	}

	post, err := p.posts.Create(reqCtx, repository.NewPost{
		ID:       postID,
		UserID:   user.Email,
		Category: category,
		Title:    form.Title,
		Content:  form.Content,
		FileURLs: locations,
	})
	if err != nil {
		p.store.DeleteAll(context.WithoutCancel(reqCtx), locations)
		if !validationFailed(ctx, err) {
			internalError(ctx, err)
		}
		return
	}
	utils.Created(ctx, post)
}

// ListPosts lists one board newest first.
func (p *PostController) ListPosts(ctx *gin.Context) {
	var q struct {
		PostType string `form:"post_type" binding:"required"`
	}
	if err := ctx.ShouldBindQuery(&q); err != nil {
		bindingFailed(ctx, err)
		return
	}
	posts, err := p.posts.ListByCategory(ctx.Request.Context(), models.Category(q.PostType))
	if err != nil {
		readFailed(ctx, err, "posts not found")
		return
	}
	utils.Success(ctx, posts)
}

// SearchPosts returns posts whose title or content contains the keyword.
func (p *PostController) SearchPosts(ctx *gin.Context) {
	var q struct {
		Keyword string `form:"keyword" binding:"required"`
	}
	if err := ctx.ShouldBindQuery(&q); err != nil {
		bindingFailed(ctx, err)
		return
	}
	posts, err := p.posts.Search(ctx.Request.Context(), q.Keyword)
	if err != nil {
		readFailed(ctx, err, "posts not found")
		return
	}
	utils.Success(ctx, posts)
}

// ListMyPosts returns the authenticated user's posts newest first.
func (p *PostController) ListMyPosts(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	posts, err := p.posts.ListByOwner(ctx.Request.Context(), user.Email)
	if err != nil {
		readFailed(ctx, err, "posts not found")
		return
	}
	utils.Success(ctx, posts)
}

// GetPost returns a post and counts the view.
func (p *PostController) GetPost(ctx *gin.Context) {
	post, err := p.posts.GetDetail(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		readFailed(ctx, err, "post not found")
		return
	}
	utils.Success(ctx, post)
}

// UpdatePost rewrites a post. Supplying files replaces the whole attachment list; the old
// objects are removed only after the conditional update succeeded.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	form, ok := bindPostForm(ctx)
	if !ok {
		return
	}
	postID := ctx.Param("id")
	category := models.Category(form.PostType)
	if err := repository.ValidatePostFields(user.Email, category, form.Title); err != nil {
		validationFailed(ctx, err)
		return
	}
	form.stripMarkup()

	reqCtx := ctx.Request.Context()
	old, err := p.posts.Get(reqCtx, postID)
	if err != nil {
		mutationFailed(ctx, err, rejectedPostMessage)
		return
	}
	if old.UserID != user.Email {
		mutationFailed(ctx, repository.ErrForbidden, rejectedPostMessage)
		return
	}

	uploads, err := p.readUploads(form.Files)
	if err != nil {
		uploadFailed(ctx, err)
		return
	}
	var fresh []string
	var fileURLs *[]string
	if len(uploads) > 0 {
		fresh, err = p.store.StoreAll(reqCtx, postID, uploads)
		if err != nil {
			uploadFailed(ctx, err)
			return
		}
		fileURLs = &fresh
	}

	updated, err := p.posts.Update(reqCtx, repository.PostUpdate{
		ID:       postID,
		UserID:   user.Email,
		Title:    form.Title,
		Content:  form.Content,
		Category: category,
		FileURLs: fileURLs,
	})
	cleanupCtx := context.WithoutCancel(reqCtx)
	if err != nil {
		if len(fresh) > 0 {
			p.store.DeleteAll(cleanupCtx, fresh)
		}
		mutationFailed(ctx, err, rejectedPostMessage)
		return
	}
	if fileURLs != nil && len(old.FileURLs) > 0 {
		res := p.store.DeleteAll(cleanupCtx, old.FileURLs)
		if res.Failed > 0 {
			utils.Logger.Warn("replaced attachments left behind",
				zap.String("post_id", postID), zap.Int("failed", res.Failed))
		}
	}
	utils.Success(ctx, updated)
}

// DeletePost removes the post record, then its comments and attachments on a best-effort basis.
func (p *PostController) DeletePost(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	postID := ctx.Param("id")
	reqCtx := ctx.Request.Context()

	old, err := p.posts.Get(reqCtx, postID)
	if err != nil {
		mutationFailed(ctx, err, rejectedPostMessage)
		return
	}
	if err := p.posts.Delete(reqCtx, postID, user.Email); err != nil {
		mutationFailed(ctx, err, rejectedPostMessage)
		return
	}

	cleanupCtx := context.WithoutCancel(reqCtx)
	cascade, err := p.comments.DeleteAllForPost(cleanupCtx, postID)
	if err != nil {
		utils.Logger.Warn("comment cascade failed", zap.String("post_id", postID), zap.Error(err))
	}
	files := p.store.DeleteAll(cleanupCtx, old.FileURLs)
	utils.Logger.Info("post deleted",
		zap.String("post_id", postID),
		zap.Int("comments_deleted", cascade.Deleted),
		zap.Int("comments_failed", cascade.Failed),
		zap.Int("attachments_deleted", files.Deleted),
		zap.Int("attachments_failed", files.Failed),
	)
	utils.Success(ctx, gin.H{
		"message":             "post deleted",
		"comments_deleted":    cascade.Deleted,
		"attachments_deleted": files.Deleted,
	})
}
