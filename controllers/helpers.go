package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/cppla/healthbbs/middleware"
	"github.com/cppla/healthbbs/models"
	"github.com/cppla/healthbbs/repository"
	"github.com/cppla/healthbbs/storage"
	"github.com/cppla/healthbbs/utils"
)

const rejectedPostMessage = "post not found or not owned"

// bindingFailed answers a request whose body or query could not be bound.
func bindingFailed(ctx *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]repository.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, repository.FieldError{
				Field:  fieldName(fe),
				Reason: reasonFor(fe),
			})
		}
		utils.ValidationFailed(ctx, http.StatusUnprocessableEntity, 42201, fields)
		return
	}
	utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
}

func fieldName(fe validator.FieldError) string {
	// struct field names are mapped back to their wire names
	switch fe.Field() {
	case "Pw":
		return "pw"
	case "SecretKey":
		return "secret_key"
	case "PostType":
		return "post_type"
	}
	return strings.ToLower(fe.Field())
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "is invalid"
}

// validationFailed answers a repository ValidationError with its field detail.
func validationFailed(ctx *gin.Context, err error) bool {
	var ve *repository.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	utils.ValidationFailed(ctx, http.StatusBadRequest, 40002, ve.Fields)
	return true
}

// readFailed maps a repository error on a read endpoint.
func readFailed(ctx *gin.Context, err error, notFoundMsg string) {
	switch {
	case validationFailed(ctx, err):
	case errors.Is(err, repository.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, notFoundMsg)
	default:
		internalError(ctx, err)
	}
}

// mutationFailed maps a repository error on an owner-gated endpoint. A missing record and a
// foreign record produce the same response.
func mutationFailed(ctx *gin.Context, err error, rejectedMsg string) {
	switch {
	case validationFailed(ctx, err):
	case repository.IsRejected(err):
		utils.Error(ctx, http.StatusForbidden, 40301, rejectedMsg)
	default:
		internalError(ctx, err)
	}
}

// uploadFailed maps an attachment store error.
func uploadFailed(ctx *gin.Context, err error) {
	if errors.Is(err, storage.ErrTooLarge) {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "attachment exceeds size limit")
		return
	}
	utils.Sugar.Errorf("%s %s: attachment upload failed: %v", ctx.Request.Method, ctx.FullPath(), err)
	utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to upload attachments")
}

func internalError(ctx *gin.Context, err error) {
	utils.Sugar.Errorf("%s %s: %v", ctx.Request.Method, ctx.FullPath(), err)
	utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
}

func currentUser(ctx *gin.Context) (*models.User, bool) {
	u, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	}
	return u, ok
}
