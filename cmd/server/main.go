// Package main runs the setlist collaboration HTTP server with
// WebSocket fan-out and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aria-setlist/backend/config"
	"github.com/aria-setlist/backend/internal/access"
	"github.com/aria-setlist/backend/internal/auth"
	"github.com/aria-setlist/backend/internal/lineups"
	"github.com/aria-setlist/backend/internal/mailer"
	"github.com/aria-setlist/backend/internal/middleware"
	"github.com/aria-setlist/backend/internal/realtime"
	"github.com/aria-setlist/backend/internal/rooms"
	"github.com/aria-setlist/backend/internal/songs"
	"github.com/aria-setlist/backend/internal/worker"
	"github.com/aria-setlist/backend/pkg/database"
	"github.com/aria-setlist/backend/pkg/queue"
	"github.com/aria-setlist/backend/pkg/redis"
	"github.com/aria-setlist/backend/pkg/response"
	"github.com/aria-setlist/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.AccessKeyID != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ChartsBucket:         cfg.AWS.ChartsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Access control: invitations, host/guest links, token redemption.
	authRepo := auth.NewRepository(pool)
	accessRepo := access.NewRepository(pool)
	inviteTTL := time.Duration(cfg.Invite.ExpireDays) * 24 * time.Hour
	accessService := access.NewService(accessRepo, authRepo, jobQueue, inviteTTL, logger)
	accessHandler := access.NewHandler(accessService, hub, logger)

	redeemOnRegister := func(ctx context.Context, token string) error {
		_, err := accessService.RedeemInvitation(ctx, token)
		return err
	}
	authHandler := auth.NewHandler(authRepo, jwtService, redeemOnRegister, logger)

	// Room membership derives from accepted links only.
	resolver := rooms.NewResolver(accessRepo)

	// Songs and lineups
	songRepo := songs.NewRepository(pool)
	songHandler := songs.NewHandler(songRepo, accessService, s3Client, hub, logger)
	lineupRepo := lineups.NewRepository(pool)
	lineupHandler := lineups.NewHandler(lineupRepo, songRepo, accessService, s3Client, hub, logger)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public token probe: the invitee may not have an account yet.
	router.GET("/users/invite/:token", accessHandler.RedeemInvitation)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Host/guest access control
		api.POST("/users/invite-artist", accessHandler.InviteArtist)
		api.POST("/users/uninvite-artist", accessHandler.UninviteArtist)
		api.POST("/users/leave-collection", accessHandler.LeaveCollection)
		api.GET("/users/pending-invitation", accessHandler.PendingInvitations)
		api.POST("/users/accept-invitation", accessHandler.AcceptInvitation)
		api.POST("/users/reject-invitation", accessHandler.RejectInvitation)
		api.POST("/users/send-invitation", accessHandler.SendInvitation)
		api.GET("/users/check-guest", accessHandler.CheckGuest)
		api.GET("/users/connected-to-me", accessHandler.ConnectedToMe)
		api.GET("/users/my-collection", accessHandler.MyCollection)

		// Songs
		api.GET("/songs", songHandler.List)
		api.POST("/songs", songHandler.Create)
		api.PATCH("/songs/:id", songHandler.Update)
		api.DELETE("/songs/:id", songHandler.Delete)
		api.POST("/songs/:id/chart", songHandler.UploadChart)
		api.DELETE("/songs/:id/chart", songHandler.DeleteChart)
		api.GET("/songs/:id/chart-url", songHandler.ChartURL)
		api.GET("/hosts/:id/songs", songHandler.ListByHost)

		// Lineups
		api.GET("/lineups", lineupHandler.List)
		api.POST("/lineups", lineupHandler.Create)
		api.GET("/lineups/:id", lineupHandler.Get)
		api.PATCH("/lineups/:id", lineupHandler.Update)
		api.DELETE("/lineups/:id", lineupHandler.Delete)
		api.GET("/hosts/:id/lineups", lineupHandler.ListByHost)
		api.POST("/lineups/:id/songs", lineupHandler.AddSong)
		api.DELETE("/lineups/:id/songs/:songId", lineupHandler.RemoveSong)
		api.PUT("/lineups/:id/order", lineupHandler.Reorder)
		api.POST("/lineups/:id/songs/:songId/chart", lineupHandler.UploadEntryChart)
		api.DELETE("/lineups/:id/songs/:songId/chart", lineupHandler.DeleteEntryChart)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate, resolver, lineupHandler.CanViewLineup))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process email worker. Deployments that scale dispatch
	// separately run cmd/worker instead and leave this one idle.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	mail := mailer.New(cfg.Email, cfg.Server.AppBaseURL, logger)
	emailProcessor := worker.NewEmailProcessor(mail, jobQueue, logger)
	go emailProcessor.Run(workerCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
