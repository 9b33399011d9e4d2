// handlers/battle_routes.go
package handlers

import (
	"eco-quest-system/middleware"
	"eco-quest-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBattleRoutes(app *fiber.App, battleService *services.BattleService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/battles", battleService.StartBattle)
}
