package models

// Task is one eco-action users can submit proof for. IDs are slugs so they
// stay stable and URL-safe ("bottle", "metal", "paper").
type Task struct {
	ID        string `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	Desc      string `gorm:"type:text" json:"desc"`
	XP        int64  `gorm:"default:0" json:"xp"`
	ProofType string `gorm:"type:varchar(16);default:'image'" json:"proof_type"`
	Active    bool   `gorm:"default:true;index" json:"active"`
}

func (Task) TableName() string { return "tasks" }
