// handlers/profile_routes.go
package handlers

import (
	"eco-quest-system/middleware"
	"eco-quest-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProfileRoutes(app *fiber.App, profileService *services.ProfileService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/info", profileService.GetInfo)
	secured.Post("/username", profileService.UpsertUsername)
	secured.Get("/leaderboard", profileService.GetLeaderboard)
	secured.Get("/classboard", profileService.GetClassboard)
	secured.Post("/class", profileService.GetClassmates)
}
