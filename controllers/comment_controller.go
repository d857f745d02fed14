package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/healthbbs/repository"
	"github.com/cppla/healthbbs/utils"
)

const rejectedCommentMessage = "comment not found or not owned"

// CommentController handles comments under a post.
type CommentController struct {
	comments *repository.CommentRepository
}

// NewCommentController creates a CommentController.
func NewCommentController(comments *repository.CommentRepository) *CommentController {
	return &CommentController{comments: comments}
}

// CreateComment adds a comment signed with the author's current nickname.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required,min=1,max=500"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindingFailed(ctx, err)
		return
	}

	res, err := c.comments.Create(ctx.Request.Context(), ctx.Param("id"), user.Email, user.Nickname, utils.Sanitize(req.Content))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return
		}
		readFailed(ctx, err, "post not found")
		return
	}
	utils.Created(ctx, res.Comment)
}

// ListComments lists a post's comments oldest first.
func (c *CommentController) ListComments(ctx *gin.Context) {
	comments, err := c.comments.ListByPost(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		readFailed(ctx, err, "post not found")
		return
	}
	utils.Success(ctx, comments)
}

// DeleteComment removes the caller's own comment.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	key, err := repository.ParseCommentKey(ctx.Param("cid"))
	if err != nil {
		utils.ValidationFailed(ctx, http.StatusBadRequest, 40002,
			[]repository.FieldError{{Field: "comment_id", Reason: err.Error()}})
		return
	}
	if _, err := c.comments.Delete(ctx.Request.Context(), ctx.Param("id"), key, user.Email); err != nil {
		mutationFailed(ctx, err, rejectedCommentMessage)
		return
	}
	utils.Success(ctx, gin.H{"message": "comment deleted"})
}
