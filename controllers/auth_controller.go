package controllers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/healthbbs/middleware"
	"github.com/cppla/healthbbs/models"
	"github.com/cppla/healthbbs/repository"
	"github.com/cppla/healthbbs/utils"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// UserStore is the subset of the user repository the auth endpoints need.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, email string) (*models.User, error)
	Delete(ctx context.Context, email string) error
}

// AuthController handles signup, login, profile and account removal.
type AuthController struct {
	users       UserStore
	tokens      *utils.TokenManager
	blacklist   utils.TokenBlacklist
	adminSecret string
}

// NewAuthController creates an AuthController.
func NewAuthController(users UserStore, tokens *utils.TokenManager, blacklist utils.TokenBlacklist, adminSecret string) *AuthController {
	return &AuthController{users: users, tokens: tokens, blacklist: blacklist, adminSecret: adminSecret}
}

// Signup registers a local account. The admin role is granted only when secret_key matches.
func (a *AuthController) Signup(ctx *gin.Context) {
	var req struct {
		Email     string `json:"email" binding:"required"`
		Pw        string `json:"pw" binding:"required,min=6,max=72"`
		Nickname  string `json:"nickname" binding:"required,min=1,max=30"`
		SecretKey string `json:"secret_key"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindingFailed(ctx, err)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Nickname = utils.Sanitize(strings.TrimSpace(req.Nickname))
	var fields []repository.FieldError
	if !emailPattern.MatchString(req.Email) {
		fields = append(fields, repository.FieldError{Field: "email", Reason: "invalid email format"})
	}
	if req.Nickname == "" {
		fields = append(fields, repository.FieldError{Field: "nickname", Reason: "is required"})
	}
	if len(fields) > 0 {
		utils.ValidationFailed(ctx, http.StatusBadRequest, 40002, fields)
		return
	}

	hash, err := utils.HashPassword(req.Pw)
	if err != nil {
		internalError(ctx, err)
		return
	}

	role := models.RoleUser
	if a.isAdminSecret(req.SecretKey) {
		role = models.RoleAdmin
	}
	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Nickname:     req.Nickname,
		Role:         role,
	}
	if err := a.users.Create(ctx.Request.Context(), user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			utils.Error(ctx, http.StatusConflict, 40901, "email already registered")
			return
		}
		internalError(ctx, err)
		return
	}

	utils.Sugar.Infow("user registered", "email", user.Email, "role", user.Role)
	utils.Created(ctx, gin.H{"email": user.Email, "nickname": user.Nickname, "role": user.Role})
}

func (a *AuthController) isAdminSecret(supplied string) bool {
	if a.adminSecret == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(a.adminSecret)) == 1
}

// Login verifies credentials and issues a bearer token.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Pw    string `json:"pw" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindingFailed(ctx, err)
		return
	}

	user, err := a.users.Get(ctx.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		internalError(ctx, err)
		return
	}
	if user == nil || !utils.CheckPassword(user.PasswordHash, req.Pw) {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "invalid email or password")
		return
	}

	token, exp, err := a.tokens.GenerateToken(user.Email)
	if err != nil {
		internalError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"role":         user.Role,
		"expires_at":   exp.UTC().Format(time.RFC3339),
	})
}

// Me returns the authenticated user's profile.
func (a *AuthController) Me(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{"email": user.Email, "nickname": user.Nickname, "role": user.Role})
}

// DeleteMe removes the authenticated account after re-confirming its password.
func (a *AuthController) DeleteMe(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindingFailed(ctx, err)
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "password mismatch")
		return
	}

	if err := a.users.Delete(ctx.Request.Context(), user.Email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "user no longer exists")
			return
		}
		internalError(ctx, err)
		return
	}
	a.revokeCurrent(ctx)
	utils.Sugar.Infow("user deleted", "email", user.Email)
	utils.Success(ctx, gin.H{"message": "account deleted"})
}

// Logout revokes the presented token until it expires.
func (a *AuthController) Logout(ctx *gin.Context) {
	a.revokeCurrent(ctx)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

func (a *AuthController) revokeCurrent(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	if token == "" || a.blacklist == nil {
		return
	}
	claims, err := a.tokens.ParseToken(token)
	if err != nil || claims.ExpiresAt == nil {
		return
	}
	a.blacklist.Revoke(context.WithoutCancel(ctx.Request.Context()), token, claims.ExpiresAt.Time)
}
