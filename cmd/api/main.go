package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/newslens/backend/internal/analysis"
	"github.com/newslens/backend/internal/api/handlers"
	"github.com/newslens/backend/internal/auth"
	"github.com/newslens/backend/internal/cache/redis"
	"github.com/newslens/backend/internal/llm"
	"github.com/newslens/backend/internal/metrics"
	"github.com/newslens/backend/internal/middleware/ratelimit"
	"github.com/newslens/backend/internal/middleware/security"
	"github.com/newslens/backend/internal/news"
	"github.com/newslens/backend/internal/storage/sqlite"
	"github.com/newslens/backend/pkg/config"
	appLogger "github.com/newslens/backend/pkg/logger"
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

	appLogger.Info("Starting NewsLens API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *redis.Client
	cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Warn("Redis unavailable, caching disabled", zap.Error(err))
		cacheClient = nil
	} else {
		defer cacheClient.Close()
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	engine := analysis.NewEngine(sqliteClient, llmClient)
	if cacheClient != nil {
		engine.WithResponseCache(cacheClient)
	}

	newsClient := news.NewAPIClient(cfg.NewsAPI.APIKey, cfg.NewsAPI.Country, cfg.NewsAPI.TimeoutSec)
	fetcher := news.NewFetcher(newsClient, sqliteClient)

	authService := auth.NewService(sqliteClient, auth.Config{
		Secret:     cfg.Auth.JWTSecret,
		TokenTTL:   time.Duration(cfg.Auth.TokenTTLHours) * time.Hour,
		BcryptCost: cfg.Auth.BCryptCost,
	})

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.Server.RateLimit,
		Logger:            appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	userHandler := handlers.NewUserHandler(authService, sqliteClient)
	articleHandler := handlers.NewArticleHandler(sqliteClient, fetcher, cfg.NewsAPI.FetchBudget)
	analysisHandler := handlers.NewAnalysisHandler(engine, sqliteClient, cacheClient)
	comparisonHandler := handlers.NewComparisonHandler(sqliteClient)
	preferencesHandler := handlers.NewPreferencesHandler(sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(engine, authService)

	api := app.Group("/api/v1")

	api.Post("/auth/register", userHandler.Register)
	api.Post("/auth/login", userHandler.Login)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})
	api.Get("/ready", func(c *fiber.Ctx) error {
		if err := sqliteClient.Ping(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
				"error":  "database unreachable",
			})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})
	api.Get("/metrics", metrics.MetricsHandler())

	protected := api.Group("", authService.Middleware(), limiter.Middleware())

	protected.Get("/articles", articleHandler.ListArticles)
	protected.Get("/articles/:id", articleHandler.GetArticle)
	protected.Post("/articles/fetch", articleHandler.FetchArticles)

	protected.Post("/analyses", analysisHandler.RequestAnalysis)
	protected.Post("/analyses/bulk", analysisHandler.BulkAnalyze)
	protected.Post("/analyses/manual", analysisHandler.CreateManual)
	protected.Get("/analyses", analysisHandler.ListAnalyses)
	protected.Get("/analyses/trending", analysisHandler.Trending)
	protected.Get("/analyses/controversial", analysisHandler.Controversial)
	protected.Get("/analyses/:id", analysisHandler.GetAnalysis)

	protected.Post("/comparisons", comparisonHandler.CreateComparison)
	protected.Get("/comparisons", comparisonHandler.ListComparisons)
	protected.Get("/comparisons/:id", comparisonHandler.GetComparison)
	protected.Get("/comparisons/:id/stats", comparisonHandler.ComparisonStats)
	protected.Delete("/comparisons/:id", comparisonHandler.DeleteComparison)

	protected.Get("/users/me", userHandler.GetProfile)
	protected.Put("/users/me", userHandler.UpdateProfile)
	protected.Get("/users/me/stats", analysisHandler.Stats)
	protected.Get("/users/me/preferences", preferencesHandler.GetPreferences)
	protected.Put("/users/me/preferences", preferencesHandler.UpdatePreferences)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/analyze", websocket.New(wsHandler.HandleConnection))

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
	app.Shutdown()
	appLogger.Info("Server stopped")
}
