package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rahul2762/codesync-backend/internal/cache"
	"github.com/rahul2762/codesync-backend/internal/config"
	"github.com/rahul2762/codesync-backend/internal/handlers"
	"github.com/rahul2762/codesync-backend/internal/middleware"
	"github.com/rahul2762/codesync-backend/internal/sandbox"
	"github.com/rahul2762/codesync-backend/pkg/logger"
)

func main() {
	config.LoadConfig()

	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}
	logger.Init(env)

	logger.Info().Str("environment", env).Msg("Starting CodeSync Backend...")

	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Sandbox runner with its scratch directory.
	runner, err := sandbox.NewRunner(config.AppConfig.ScratchDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize sandbox runner")
	}

	// Execution-result cache: Redis when configured, else in-memory.
	var store cache.Store
	if addr := config.AppConfig.RedisAddr; addr != "" {
		if redisStore, err := cache.NewRedis(addr, config.AppConfig.RedisPassword); err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, using in-memory execution cache")
			store = cache.NewMemory()
		} else {
			logger.Info().Str("addr", addr).Msg("Using Redis execution cache")
			store = redisStore
		}
	} else {
		store = cache.NewMemory()
	}

	r := gin.New()
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	// Websocket upgrades are exempt from the general limiter.
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/ws" {
			c.Next()
			return
		}
		middleware.GeneralRateLimit()(c)
	})

	execution := handlers.NewExecutionHandler(runner, store)
	api := r.Group("/api")
	{
		api.POST("/execute", middleware.ExecuteRateLimit(), execution.Execute)
	}

	r.GET("/health", handlers.HealthCheck)
	r.GET("/", handlers.Root)

	socketServer := handlers.NewSocketServer()
	defer socketServer.Close()
	r.GET("/ws", socketServer.Handler())

	port := config.AppConfig.Port
	if port == "" {
		port = "5000"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", port).Str("env", env).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
