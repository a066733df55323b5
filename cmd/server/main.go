package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"booktracker/internal/auth"
	"booktracker/internal/config"
	"booktracker/internal/handlers"
	"booktracker/internal/models"
	"booktracker/internal/repositories"
	"booktracker/internal/services"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	gin.SetMode(cfg.GinMode)

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("failed to get generic DB", zap.Error(err))
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := models.AutoMigrate(db); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	userRepo := repositories.NewUserRepository(db)
	bookRepo := repositories.NewBookRepository(db)
	libRepo := repositories.NewLibraryRepository(db)
	shareRepo := repositories.NewShareRepository(db)

	svc := handlers.Services{
		Accounts: services.NewAccountService(db, userRepo, logger),
		Library:  services.NewLibraryService(db, bookRepo, libRepo, logger),
		Sharing:  services.NewSharingService(db, userRepo, libRepo, shareRepo, logger),
		Stats:    services.NewStatsService(db, libRepo, shareRepo),
	}
	sessions := auth.NewSessionManager([]byte(cfg.SessionSecret), cfg.SessionTTL)

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())
	handlers.RegisterRoutes(router, svc, sessions, logger)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

// requestLogger logs one line per request with method, path, status, and latency.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
