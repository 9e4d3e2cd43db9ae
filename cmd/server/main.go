package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sales-service/config"
	"sales-service/internal/api"
	"sales-service/internal/broker"
	"sales-service/internal/redisclient"
	"sales-service/internal/service"
	"sales-service/internal/store"
	"sales-service/internal/util"
	"sales-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	if cfg.Server.LogLevel != "" {
		if err := util.SetLogLevel(cfg.Server.LogLevel); err != nil {
			logger.Warn("Ignoring invalid LOG_LEVEL", zap.String("level", cfg.Server.LogLevel), zap.Error(err))
		}
	}
	logger.Info("Starting sales service",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port))

	loc, err := cfg.Business.Location()
	if err != nil {
		logger.Fatal("Invalid business configuration", zap.Error(err))
	}

	tp, err := util.InitTracer(util.TracingOptions{
		ServiceName:    "sales-service",
		Environment:    cfg.Server.Env,
		JaegerEndpoint: cfg.Observ.JaegerEndpoint,
		SampleRatio:    cfg.Observ.TraceSampleRatio,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	ctx := context.Background()
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicSales))

	eventPublisher := broker.NewEventPublisher(producer)

	settings := service.Settings{
		Location:       loc,
		IdempotencyTTL: cfg.Business.IdempotencyTTL,
		LockTTL:        cfg.Business.LockTTL,
	}

	inventoryClient := service.NewInventoryClient(db, redisClient)
	saleService := service.NewSaleService(db, inventoryClient, redisClient, eventPublisher, settings)
	paymentService := service.NewPaymentService(db, eventPublisher)
	returnService := service.NewReturnService(db, redisClient, eventPublisher)
	timelineService := service.NewTimelineService(db, loc)
	ledgerService := service.NewLedgerService(db, loc)

	if err := inventoryClient.SyncInventoryToRedis(ctx); err != nil {
		logger.Error("Failed to sync inventory to Redis", zap.Error(err))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	ledgerConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales, cfg.Kafka.ConsumerGroup)
	ledgerWorker := worker.NewLedgerWorker(ledgerConsumer, ledgerService)
	go func() {
		if err := ledgerWorker.Start(workerCtx); err != nil {
			logger.Error("Ledger worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Sales:    saleService,
		Payments: paymentService,
		Returns:  returnService,
		Timeline: timelineService,
		Ledger:   ledgerService,
	}, map[string]api.Pinger{
		"postgres": db,
		"redis":    redisClient,
	}, loc)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := ledgerWorker.Stop(); err != nil {
		logger.Error("Failed to stop ledger worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
