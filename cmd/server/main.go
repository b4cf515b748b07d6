package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/acme-analytics/genie-gateway/config"
	"github.com/acme-analytics/genie-gateway/db"
	"github.com/acme-analytics/genie-gateway/handlers"
	"github.com/acme-analytics/genie-gateway/internal/utils"
	"github.com/acme-analytics/genie-gateway/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger := utils.MustNewLogger(cfg.Logging).Sugar()
	defer logger.Sync()

	ctx := context.Background()

	mongoStore, err := db.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatalf("mongo: failed to connect: %v", err)
	}
	defer func() {
		if err := mongoStore.Close(context.Background()); err != nil {
			logger.Warnf("mongo: close error: %v", err)
		}
	}()

	transcripts, err := db.NewTranscriptStore(mongoStore)
	if err != nil {
		logger.Fatalf("mongo: transcript store: %v", err)
	}
	if err := transcripts.EnsureIndexes(ctx); err != nil {
		logger.Fatalf("mongo: ensure indexes: %v", err)
	}

	redisClient, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatalf("redis: failed to connect: %v", err)
	}
	defer redisClient.Close()

	conversations, err := db.NewConversationMap(redisClient, cfg.Bot.ConversationTTL)
	if err != nil {
		logger.Fatalf("redis: conversation map: %v", err)
	}

	genie := services.NewGenieClient(cfg.Genie, logger)
	poller := services.NewPoller(genie, cfg.Genie.PollInterval, cfg.Genie.MaxWait, logger)
	runner := services.NewBatchRunner(genie, poller, services.FreshConversationPerQuestion, logger)

	router := setupRouter(cfg, runner, transcripts, conversations, logger)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // ask requests hold the connection while polling
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server crashed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown failed: %v", err)
	}

	logger.Info("server stopped cleanly")
}

func setupRouter(
	cfg *config.Config,
	runner *services.BatchRunner,
	transcripts *db.TranscriptStore,
	conversations *db.ConversationMap,
	logger *zap.SugaredLogger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), handlers.RequestID())

	handlers.NewAskHandler(runner, transcripts, logger).RegisterRoutes(router)
	handlers.NewBotHandler(cfg.Bot, runner, conversations, logger).RegisterRoutes(router)
	handlers.NewToolHandler(runner, logger).RegisterRoutes(router)

	return router
}
