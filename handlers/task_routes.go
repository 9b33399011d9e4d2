// handlers/task_routes.go
package handlers

import (
	"eco-quest-system/middleware"
	"eco-quest-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTaskRoutes(app *fiber.App, taskService *services.TaskService) {
	// 🔓 Public catalog — no user context, but still behind Gateway auth.
	app.Get("/tasks", taskService.GetActiveTaskIDs)
	app.Get("/tasks/catalog", taskService.GetTaskCatalog)

	secured := app.Group("/s", middleware.UserContextMiddleware())
	secured.Post("/tasks", taskService.CreateTask)
}
