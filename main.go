package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/healthbbs/config"
	"github.com/cppla/healthbbs/repository"
	"github.com/cppla/healthbbs/routes"
	"github.com/cppla/healthbbs/storage"
	"github.com/cppla/healthbbs/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db, err := config.InitDatabase(cfg)
	if err != nil {
		utils.Sugar.Fatalf("database init failed: %v", err)
	}

	repoLog := repository.WithLogger(utils.Logger.Named("repository"))
	posts := repository.NewPostRepository(db, repoLog)
	comments := repository.NewCommentRepository(db, repoLog)
	users := repository.NewUserRepository(db, repoLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := storage.NewBackendFromConfig(ctx, cfg)
	if err != nil {
		utils.Sugar.Fatalf("attachment storage init failed: %v", err)
	}
	store := storage.NewAttachmentStore(backend, int64(cfg.UploadMaxMB)<<20, utils.Logger.Named("storage"))

	rc := utils.NewRedis(cfg)
	blacklist := utils.NewTokenBlacklist(rc)
	tokens := utils.NewTokenManager(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)

	// Repair comment counters left behind by failed counter adjustments
	reconciler := utils.NewCommentReconciler(posts, comments,
		time.Duration(cfg.ReconcileIntervalMinutes)*time.Minute, utils.Logger.Named("reconciler"))
	reconciler.Start(ctx)

	r := routes.SetupRouter(routes.Dependencies{
		Config:    cfg,
		Posts:     posts,
		Comments:  comments,
		Users:     users,
		Store:     store,
		Tokens:    tokens,
		Blacklist: blacklist,
	})

	utils.Logger.Info("starting server (graceful)",
		zap.String("port", cfg.AppPort),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("storage", cfg.StorageBackend))
	err = utils.GraceServer(":"+cfg.AppPort, r, cancel, func() {
		if rc != nil {
			_ = rc.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
