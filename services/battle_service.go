// services/battle_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"eco-quest-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var (
	battleWinReward  = RewardPayload{XP: 80, Coins: 35}
	battleLossReward = RewardPayload{XP: 25, Coins: 10}
)

// BattleService settles asynchronous PvP rounds against a randomly chosen
// opponent. The opponent's balance is never touched; only the caller earns.
type BattleService struct {
	DB *gorm.DB
}

func NewBattleService(db *gorm.DB) *BattleService {
	return &BattleService{DB: db}
}

// StartBattle handles POST /s/battles. Winner is decided by dragon power
// (coin flip on ties); the caller's reward goes through the same atomic
// balance increment the submission pipeline uses. Results are transient —
// nothing about the round itself is persisted.
func (s *BattleService) StartBattle(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var me models.Profile
	if err := s.DB.First(&me, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "profile not found"})
		}
		log.Printf("DB Error fetching battle profile: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	// Roster mirrors the leaderboard view: top 100 by XP, minus the caller.
	var opponents []models.Profile
	if err := s.DB.Where("user_id <> ?", userID).
		Order("total_xp DESC").
		Limit(100).
		Find(&opponents).Error; err != nil {
		log.Printf("DB Error fetching opponents: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if len(opponents) == 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no opponents available"})
	}
	opponent := opponents[rand.Intn(len(opponents))]

	mePower := DragonPowerScore(me.TotalXP, me.Coins)
	opponentPower := DragonPowerScore(opponent.TotalXP, opponent.Coins)
	meWins := mePower > opponentPower
	if mePower == opponentPower {
		meWins = rand.Intn(2) == 0
	}

	reward := battleLossReward
	if meWins {
		reward = battleWinReward
	}

	if err := ApplyReward(s.DB, userID, &reward); err != nil {
		log.Printf("DB Error applying battle reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to apply reward"})
	}

	me.TotalXP += reward.XP
	me.Coins += reward.Coins

	winnerID := opponent.UserID
	message := fmt.Sprintf("%s bu raundu aldı, ama %s ekstra antrenmanla dönecek.", opponent.Name, me.Name)
	if meWins {
		winnerID = me.UserID
		message = fmt.Sprintf("%s ejderhası seviye %d ile ateş püskürttü!", me.Name, XPToLevel(me.TotalXP))
	}

	log.Printf("⚔️ [BATTLE] %s vs %s — winner %s (+%d XP, +%d coins)",
		me.UserID, opponent.UserID, winnerID, reward.XP, reward.Coins)

	return c.JSON(fiber.Map{
		"me":       me,
		"opponent": opponent,
		"winner_id": winnerID,
		"dragon_power": fiber.Map{
			"me":       mePower,
			"opponent": opponentPower,
		},
		"reward":    reward,
		"message":   message,
		"timestamp": time.Now().UnixMilli(),
	})
}
