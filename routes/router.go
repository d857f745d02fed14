package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/cppla/healthbbs/config"
	"github.com/cppla/healthbbs/controllers"
	"github.com/cppla/healthbbs/middleware"
	"github.com/cppla/healthbbs/repository"
	"github.com/cppla/healthbbs/storage"
	"github.com/cppla/healthbbs/utils"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Config    config.AppConfig
	Posts     *repository.PostRepository
	Comments  *repository.CommentRepository
	Users     *repository.UserRepository
	Store     *storage.AttachmentStore
	Tokens    *utils.TokenManager
	Blacklist utils.TokenBlacklist
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	binding.EnableDecoderDisallowUnknownFields = true

	r := gin.New()
	accessLog := utils.Logger
	if cfg.GinPath != "" {
		gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
		if err == nil {
			accessLog = gl
		} else {
			utils.Logger.Warn("gin access log unavailable, using application log", zap.Error(err))
		}
	}
	r.Use(utils.Ginzap(accessLog, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(accessLog, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	if cfg.StorageBackend == "filesystem" && cfg.UploadBaseURL != "" && strings.HasPrefix(cfg.UploadBaseURL, "/") {
		r.Static(cfg.UploadBaseURL, cfg.UploadDir)
	}

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(deps.Users, deps.Tokens, deps.Blacklist, cfg.AdminSecretCode)
	postController := controllers.NewPostController(deps.Posts, deps.Comments, deps.Store, int64(cfg.UploadMaxMB)<<20)
	commentController := controllers.NewCommentController(deps.Comments)

	authRequired := middleware.AuthRequired(deps.Tokens, deps.Blacklist, deps.Users)
	authLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	writeLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(authLimiter.Middleware())
	authGroup.POST("/signup", authController.Signup)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", authRequired, authController.Logout)
	authGroup.GET("/me", authRequired, authController.Me)
	authGroup.DELETE("/me", authRequired, authController.DeleteMe)

	postsGroup := api.Group("/posts")
	postsGroup.GET("", postController.ListPosts)
	postsGroup.GET("/search", postController.SearchPosts)
	postsGroup.GET("/:id", postController.GetPost)
	postsGroup.GET("/:id/comments", commentController.ListComments)

	protected := postsGroup.Group("")
	protected.Use(authRequired, writeLimiter.Middleware())
	protected.GET("/me", postController.ListMyPosts)
	protected.POST("", postController.CreatePost)
	protected.PUT("/:id", postController.UpdatePost)
	protected.DELETE("/:id", postController.DeletePost)
	protected.POST("/:id/comments", commentController.CreateComment)
	protected.DELETE("/:id/comments/:cid", commentController.DeleteComment)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40400, "not found")
	})

	return r
}
