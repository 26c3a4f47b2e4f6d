package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadboard/config"
	"leadboard/middleware"
	"leadboard/routes"
	"leadboard/utils"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logger := utils.ComponentLogger("server")

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Warnf("Sentry initialization failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "leadboard",
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(middleware.CORS())
	app.Use(middleware.Metrics())

	generator := utils.SelectGenerator(
		config.AppConfig.GenerationPolicy,
		utils.NewOpenAIGenerator(config.AppConfig.OpenAI),
		utils.ComponentLogger("generator"),
	)

	routes.SetupRoutes(app, routes.Dependencies{
		DB:               config.DB,
		Generator:        generator,
		BulkDelay:        config.AppConfig.BulkDelay,
		JWTSecret:        config.AppConfig.JWTSecret,
		RateLimit:        config.AppConfig.GenerateRateLimit,
		RateLimitStorage: middleware.RateLimitStorage(config.AppConfig.Redis),
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Errorf("Graceful shutdown failed: %v", err)
		}
	}()

	logger.Infof("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

// errorHandler renders unhandled errors in the standard response envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		utils.LogError("unhandled_error", err, map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
		})
		return utils.ErrorResponse(c, code, "Internal server error", nil)
	}
	return utils.ErrorResponse(c, code, err.Error(), nil)
}
