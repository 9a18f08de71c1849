package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/studyowl/backend/internal/ai"
	"github.com/studyowl/backend/internal/api/handlers"
	"github.com/studyowl/backend/internal/cache/redis"
	"github.com/studyowl/backend/internal/extraction"
	"github.com/studyowl/backend/internal/ingestion"
	"github.com/studyowl/backend/internal/middleware/ratelimit"
	"github.com/studyowl/backend/internal/middleware/security"
	"github.com/studyowl/backend/internal/middleware/validation"
	"github.com/studyowl/backend/internal/review"
	"github.com/studyowl/backend/internal/snippet"
	"github.com/studyowl/backend/internal/storage"
	"github.com/studyowl/backend/internal/storage/sqlite"
	"github.com/studyowl/backend/pkg/config"
	appLogger "github.com/studyowl/backend/pkg/logger"
	"github.com/studyowl/backend/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting StudyOwl API Server")

	var sqliteClient *sqlite.Client
	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = appLogger.GetLogger()
	err = retry.Do(context.Background(), retryCfg, func() error {
		var err error
		sqliteClient, err = sqlite.NewClient(cfg.SQLite.Path)
		return err
	})
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var contentCache ingestion.ContentCache
	if cfg.Redis.Enabled {
		var redisClient *redis.Client
		err = retry.Do(context.Background(), retryCfg, func() error {
			var err error
			redisClient, err = redis.NewClient(
				context.Background(),
				fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
				cfg.Redis.Password,
				cfg.Redis.DB,
				time.Duration(cfg.Redis.TTLSec)*time.Second,
			)
			return err
		})
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		contentCache = redisClient
	}

	gateway := ai.NewGateway(time.Duration(cfg.AI.TimeoutSec) * time.Second)
	if aiCfg, err := sqliteClient.GetAIConfig(); err == nil {
		if err := gateway.Configure(aiCfg); err != nil {
			appLogger.Warn("Stored AI config failed to activate", zap.Error(err))
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		appLogger.Fatal("Failed to load AI config", zap.Error(err))
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	processor := ingestion.NewProcessor(
		sqliteClient,
		extraction.NewExtractor(cfg.Extraction.MaxFileSize),
		snippet.NewSelector(cfg.Snippet.MaxChars, rng),
		gateway,
		contentCache,
		cfg.Storage.UploadDir,
		cfg.Extraction.Workers,
	)
	reviewEngine := review.NewEngine(sqliteClient, processor,
		rand.New(rand.NewSource(time.Now().UnixNano())))

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(validation.Middleware(validation.Config{
		MaxBodySize: cfg.Server.BodyLimit,
	}))

	kbHandler := handlers.NewKnowledgeBaseHandler(sqliteClient, processor)
	docHandler := handlers.NewDocumentHandler(processor, sqliteClient)
	quizHandler := handlers.NewQuizHandler(processor)
	reviewHandler := handlers.NewReviewHandler(reviewEngine, sqliteClient, cfg.Review.SessionLength)
	configHandler := handlers.NewConfigHandler(sqliteClient, gateway)
	wsHandler := handlers.NewWebSocketHandler(reviewEngine)

	quizLimiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 30,
		Logger:               appLogger.GetLogger(),
	})

	api := app.Group("/api/v1")

	api.Post("/knowledge-bases", kbHandler.Create)
	api.Get("/knowledge-bases", kbHandler.List)
	api.Get("/knowledge-bases/:id", kbHandler.Get)
	api.Put("/knowledge-bases/:id", kbHandler.Update)
	api.Delete("/knowledge-bases/:id", kbHandler.Delete)

	api.Post("/knowledge-bases/:id/documents", docHandler.Upload)
	api.Get("/knowledge-bases/:id/documents", docHandler.List)
	api.Get("/documents/:docId", docHandler.Get)
	api.Delete("/documents/:docId", docHandler.Delete)

	api.Post("/knowledge-bases/:id/questions", quizLimiter.Middleware(), quizHandler.GenerateQuestion)
	api.Post("/questions/:questionId/answers", quizLimiter.Middleware(), quizHandler.SubmitAnswer)

	api.Get("/knowledge-bases/:id/review/random", reviewHandler.RandomQuestion)
	api.Get("/knowledge-bases/:id/review/questions", reviewHandler.ReviewQuestions)
	api.Post("/knowledge-bases/:id/review/sessions", reviewHandler.StartSession)
	api.Post("/review/sessions/:sessionId/answers", quizLimiter.Middleware(), reviewHandler.SubmitSessionAnswer)
	api.Post("/review/sessions/:sessionId/end", reviewHandler.EndSession)
	api.Delete("/review/sessions/:sessionId", reviewHandler.AbandonSession)
	api.Get("/knowledge-bases/:id/history", reviewHandler.History)
	api.Get("/knowledge-bases/:id/sessions", reviewHandler.Sessions)
	api.Get("/knowledge-bases/:id/stats", reviewHandler.Stats)
	api.Get("/knowledge-bases/:id/progress", reviewHandler.Progress)

	api.Get("/config/ai", configHandler.Get)
	api.Post("/config/ai", configHandler.Save)
	api.Post("/config/ai/test", configHandler.Test)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/review", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}

	appLogger.Info("Server stopped")
}
