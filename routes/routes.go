package routes

import (
	"log"
	"os"

	controller "tasknest/controllers"
	"tasknest/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	// Initialize logger
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Google OAuth routes
	auth.Get("/google", controller.GoogleOAuth)
	auth.Get("/google/callback", controller.GoogleOAuthCallback)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/logout", controller.Logout)
	protectedAuth.Get("/me", controller.GetCurrentUser)

	// Billing: the webhook is signed by Stripe, not by a user session
	app.Post("/billing/webhook", controller.HandleStripeWebhook)
	billing := app.Group("/billing", middleware.Protected())
	billing.Post("/checkout", controller.CreateCheckoutSession)

	// Log initialization
	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB) {
	// Initialize controllers with their respective loggers
	projectController := controller.NewProjectController(db, log.New(os.Stdout, "PROJECT: ", log.LstdFlags))
	memberController := controller.NewMemberController(db, log.New(os.Stdout, "MEMBER: ", log.LstdFlags))
	taskController := controller.NewTaskController(db, log.New(os.Stdout, "TASK: ", log.LstdFlags))
	assignmentController := controller.NewAssignmentController(db, log.New(os.Stdout, "ASSIGN: ", log.LstdFlags))
	milestoneController := controller.NewMilestoneController(db, log.New(os.Stdout, "MILESTONE: ", log.LstdFlags))
	commentController := controller.NewCommentController(db, log.New(os.Stdout, "COMMENT: ", log.LstdFlags))
	labelController := controller.NewLabelController(db, log.New(os.Stdout, "LABEL: ", log.LstdFlags))
	attachmentController := controller.NewAttachmentController(db, log.New(os.Stdout, "ATTACHMENT: ", log.LstdFlags))

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Project routes
	projects := api.Group("/projects")
	projects.Post("/", projectController.CreateProject)
	projects.Get("/", projectController.GetProjects)

	project := projects.Group("/:id")
	project.Get("/", projectController.GetProject)
	project.Put("/", projectController.UpdateProject)
	project.Delete("/", projectController.DeleteProject)

	// Membership routes; additions are rate limited per user and project
	project.Get("/members", memberController.GetMembers)
	project.Post("/members", middleware.InviteRateLimiter(), memberController.AddMembers)
	project.Delete("/members/:userId", memberController.RemoveMember)
	project.Delete("/invites", memberController.RemovePendingInvite)

	// Project-scoped task and milestone collections
	project.Post("/tasks", taskController.CreateTask)
	project.Get("/tasks", taskController.GetTasks)
	project.Post("/milestones", milestoneController.CreateMilestone)
	project.Get("/milestones", milestoneController.GetMilestones)
	project.Get("/labels", labelController.GetLabels)
	project.Post("/labels", labelController.CreateLabel)

	// Task routes
	tasks := api.Group("/tasks")
	tasks.Get("/:taskId", taskController.GetTask)
	tasks.Put("/:taskId", taskController.UpdateTask)
	tasks.Patch("/:taskId/toggle", taskController.ToggleTask)
	tasks.Delete("/:taskId", taskController.DeleteTask)
	tasks.Put("/:taskId/labels", labelController.SetTaskLabels)

	// Assignment routes; the /me endpoints are open to every member
	tasks.Get("/:taskId/assignees", assignmentController.GetAssignees)
	tasks.Post("/:taskId/assignees/me", assignmentController.AssignSelf)
	tasks.Delete("/:taskId/assignees/me", assignmentController.UnassignSelf)
	tasks.Post("/:taskId/assignees", assignmentController.AssignUsers)
	tasks.Delete("/:taskId/assignees/:userId", assignmentController.UnassignUser)

	// Comments and attachments
	tasks.Get("/:taskId/comments", commentController.GetComments)
	tasks.Post("/:taskId/comments", commentController.CreateComment)
	tasks.Get("/:taskId/attachments", attachmentController.GetAttachments)
	tasks.Post("/:taskId/attachments", attachmentController.CreateAttachment)
	api.Delete("/comments/:commentId", commentController.DeleteComment)
	api.Delete("/attachments/:attachmentId", attachmentController.DeleteAttachment)
	api.Delete("/labels/:labelId", labelController.DeleteLabel)

	// Milestone routes
	milestones := api.Group("/milestones")
	milestones.Post("/:milestoneId/tasks", milestoneController.AddTasks)
	milestones.Delete("/:milestoneId/tasks/:taskId", milestoneController.RemoveTask)
	milestones.Delete("/:milestoneId", milestoneController.DeleteMilestone)

	// WebSocket route for project progress
	app.Get("/api/v1/projects/progress/ws", websocket.New(func(c *websocket.Conn) {
		controller.HandleProjectProgressWS(c)
	}))

	// Log initialization
	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Initialize Stripe
	controller.InitStripe()

	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Setup auth routes
	SetupAuthRoutes(app, db)

	// Setup API routes
	SetupAPIRoutes(app, db)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
