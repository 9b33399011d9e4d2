// handlers/submission_routes.go
package handlers

import (
	"eco-quest-system/middleware"
	"eco-quest-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSubmissionRoutes(app *fiber.App, submissionService *services.SubmissionService) {
	// 🔐 All submission routes require user context from the Gateway.
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/submissions", submissionService.CreateSubmission)
	secured.Get("/submissions", submissionService.ListSubmissions)
}
