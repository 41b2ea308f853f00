package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crewdesk/config"
	"crewdesk/internal/domain"
	"crewdesk/internal/events"
	"crewdesk/internal/handler"
	"crewdesk/internal/middleware"
	crewdesk_redis "crewdesk/internal/redis"
	"crewdesk/internal/repository"
	"crewdesk/internal/server"
	"crewdesk/internal/services"
	"crewdesk/internal/storage"
	"crewdesk/pkg/database"
	"crewdesk/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logMode := logger.DevelopmentMode
	if cfg.AppMode == "release" {
		logMode = logger.ProductionMode
	}
	appLogger := logger.New(logMode)
	logger.SetGlobalLogger(appLogger)
	zap.ReplaceGlobals(appLogger.Logger)

	db := database.Connect(cfg)
	if err := db.AutoMigrate(
		&domain.Conversation{},
		&domain.Participant{},
		&domain.Message{},
	); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redisClient := crewdesk_redis.NewClient(crewdesk_redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	cache := crewdesk_redis.NewCacheStore(redisClient, crewdesk_redis.DefaultCacheConfig())
	limiter := crewdesk_redis.NewRateLimiter(redisClient, crewdesk_redis.DefaultRateLimitConfig())

	bus := events.NewInProcessBus()

	conversationRepo := repository.NewConversationRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	messagingService := services.NewMessagingService(db, conversationRepo, participantRepo, messageRepo, bus, cache)
	authService := services.NewAuthService(cfg.JWTSecret)

	var attachmentService *services.AttachmentService
	if cfg.S3Bucket != "" {
		s3Client, err := storage.NewClient(context.Background(), storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PresignTTL: time.Duration(cfg.PresignTTLMin) * time.Minute,
		})
		if err != nil {
			log.Fatalf("Failed to initialize s3 storage: %v", err)
		}
		attachmentService = services.NewAttachmentService(s3Client)
	}

	hub := server.NewHub(bus, messagingService)
	go hub.Run()

	if cfg.AppMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(appLogger))
	r.Use(middleware.ErrorHandler(appLogger))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	wsHandler := server.NewWebSocketHandler(hub, authService)
	r.GET("/ws", wsHandler.Handle)

	conversationHandler := handler.NewConversationHandler(messagingService)
	messageHandler := handler.NewMessageHandler(messagingService)

	messaging := r.Group("/messaging")
	messaging.Use(middleware.AuthMiddleware(authService))
	messaging.Use(middleware.RequestRateLimitMiddleware(limiter))
	{
		messaging.POST("/conversations", conversationHandler.Create)
		messaging.GET("/conversations/user/:userId", conversationHandler.ListForUser)
		messaging.GET("/conversations/:id", conversationHandler.GetByID)
		messaging.DELETE("/conversations/:id", conversationHandler.Delete)
		messaging.POST("/conversations/:id/participants", conversationHandler.AddParticipants)
		messaging.DELETE("/conversations/:id/participants/:userId", conversationHandler.RemoveParticipant)
		messaging.GET("/conversations/:id/messages", messageHandler.List)
		messaging.POST("/messages", middleware.MessageRateLimitMiddleware(limiter), messageHandler.Send)
		messaging.PATCH("/messages/:id/read", messageHandler.MarkRead)

		if attachmentService != nil {
			attachmentHandler := handler.NewAttachmentHandler(attachmentService)
			messaging.POST("/attachments/presign-upload", attachmentHandler.PresignUpload)
			messaging.POST("/attachments/presign-download", attachmentHandler.PresignDownload)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.AppPort),
		Handler: r,
	}

	go func() {
		appLogger.Infof("Starting server on port %s", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Infof("Shutting down server")
	hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Errorf("Server shutdown failed: %v", err)
	}
}
