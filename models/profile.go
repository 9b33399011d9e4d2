package models

import "time"

// Profile is the per-user balance and identity row. The submission and battle
// pipelines only ever *increment* total_xp and coins here; identity fields are
// set through the username endpoint and everything else lives with the auth
// provider.
type Profile struct {
	UserID    string    `gorm:"primaryKey" json:"user_id"`
	Name      string    `gorm:"index" json:"name"`
	Class     string    `gorm:"index" json:"class"`
	TotalXP   int64     `gorm:"column:total_xp;default:0" json:"total_xp"`
	Coins     int64     `gorm:"default:0" json:"coins"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Profile) TableName() string { return "profiles" }
