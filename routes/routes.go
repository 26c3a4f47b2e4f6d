package routes

import (
	"time"

	controller "leadboard/controllers"
	"leadboard/middleware"
	"leadboard/store"
	"leadboard/utils"
	"leadboard/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
)

// Dependencies carries everything the route table wires into controllers.
type Dependencies struct {
	DB               *gorm.DB
	Generator        utils.MessageGenerator
	BulkDelay        time.Duration
	JWTSecret        string
	RateLimit        int
	RateLimitStorage fiber.Storage
	DisableAccessLog bool
}

func SetupAPIRoutes(app *fiber.App, deps Dependencies) {
	leads := store.NewLeadStore(deps.DB)
	messages := store.NewMessageStore(deps.DB)

	leadController := controller.NewLeadController(leads, messages, utils.ComponentLogger("leads"))
	messageController := controller.NewMessageController(messages, utils.ComponentLogger("messages"))
	generateController := controller.NewGenerateController(deps.Generator, messages, utils.ComponentLogger("generate"))
	bulkRunners := worker.NewBulkRunners(generateController, deps.BulkDelay, utils.ComponentLogger("bulk"))
	bulkController := controller.NewBulkController(leads, bulkRunners, utils.ComponentLogger("bulk"))

	handlers := []fiber.Handler{middleware.Protected(deps.JWTSecret)}
	if !deps.DisableAccessLog {
		handlers = append(handlers, logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	api := app.Group("/api/v1", handlers...)

	// Lead routes
	lead := api.Group("/leads")
	lead.Get("/", leadController.GetLeads)
	lead.Post("/", leadController.CreateLead)
	lead.Post("/export", leadController.ExportLeads)
	lead.Get("/:id", leadController.GetLead)
	lead.Patch("/:id", leadController.UpdateLead)
	lead.Put("/:id", leadController.UpdateLead)
	lead.Delete("/:id", leadController.DeleteLead)

	// Message routes
	message := api.Group("/messages")
	message.Get("/", messageController.GetMessages)
	message.Post("/", messageController.CreateMessage)
	message.Get("/stats", messageController.GetMessageStats)
	message.Get("/:id", messageController.GetMessage)
	message.Patch("/:id", messageController.UpdateMessage)
	message.Put("/:id", messageController.ReplaceMessage)
	message.Delete("/:id", messageController.DeleteMessage)

	api.Post("/generate-message",
		middleware.GenerationRateLimiter(deps.RateLimit, deps.RateLimitStorage),
		generateController.GenerateMessage,
	)

	// Bulk generation progress over websocket
	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws/bulk-generate", websocket.New(bulkController.HandleBulkGenerateWS))
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", middleware.MetricsHandler())

	SetupAPIRoutes(app, deps)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
