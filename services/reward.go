// services/reward.go
package services

import (
	"math"

	"eco-quest-system/models"

	"gorm.io/gorm"
)

// RewardPayload is the economic result of one approved submission (or a
// battle round). Never persisted on its own — it only exists in responses
// and inside the submission's audit metadata.
type RewardPayload struct {
	XP    int64 `json:"xp"`
	Coins int64 `json:"coins"`
}

// ComputeReward maps a task's point value and the derived status to a reward,
// or nil when nothing is earned. Coins floor at 1 so any approved task pays
// at least one coin.
func ComputeReward(taskXP int64, status string) *RewardPayload {
	if taskXP <= 0 || status != models.StatusApproved {
		return nil
	}
	coins := int64(math.Round(float64(taskXP) / 10))
	if coins < 1 {
		coins = 1
	}
	return &RewardPayload{XP: taskXP, Coins: coins}
}

// ApplyReward adds the payload onto the user's balance with a SQL-side
// increment. Never read-modify-write: concurrent submissions by the same
// user must not lose an increment.
func ApplyReward(tx *gorm.DB, userID string, reward *RewardPayload) error {
	return tx.Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_xp": gorm.Expr("total_xp + ?", reward.XP),
			"coins":    gorm.Expr("coins + ?", reward.Coins),
		}).Error
}
