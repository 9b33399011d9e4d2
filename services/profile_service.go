// services/profile_service.go
package services

import (
	"errors"
	"log"
	"strings"

	"eco-quest-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileService struct {
	DB *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{DB: db}
}

// GetInfo returns the caller's profile row.
func (s *ProfileService) GetInfo(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var profile models.Profile
	if err := s.DB.First(&profile, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "profile not found"})
		}
		log.Printf("DB Error fetching profile: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(fiber.Map{"data": profile})
}

// UpsertUsername sets the caller's display name and class (multipart form,
// fields "name" and "selected_class"). Balance columns are untouched.
func (s *ProfileService) UpsertUsername(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid name"})
	}
	selectedClass := strings.TrimSpace(c.FormValue("selected_class"))
	if selectedClass == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid class"})
	}

	profile := models.Profile{UserID: userID, Name: name, Class: selectedClass}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "class"}),
	}).Create(&profile).Error; err != nil {
		log.Printf("DB Error upserting profile: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save profile"})
	}

	return c.JSON(fiber.Map{"ok": true})
}

// GetLeaderboard returns the top 100 profiles by total XP.
func (s *ProfileService) GetLeaderboard(c *fiber.Ctx) error {
	var profiles []models.Profile
	if err := s.DB.Select("user_id, name, class, total_xp, coins").
		Order("total_xp DESC").
		Limit(100).
		Find(&profiles).Error; err != nil {
		log.Printf("DB Error fetching leaderboard: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load leaderboard"})
	}
	return c.JSON(fiber.Map{"data": profiles})
}

// ClassXPTotal is one row of the class leaderboard.
type ClassXPTotal struct {
	Class   string `json:"class"`
	TotalXP int64  `json:"total_xp"`
}

// GetClassboard returns per-class XP totals, highest first.
func (s *ProfileService) GetClassboard(c *fiber.Ctx) error {
	var totals []ClassXPTotal
	if err := s.DB.Model(&models.Profile{}).
		Select("class, SUM(total_xp) AS total_xp").
		Group("class").
		Order("total_xp DESC").
		Scan(&totals).Error; err != nil {
		log.Printf("DB Error fetching classboard: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load class leaderboard"})
	}
	return c.JSON(fiber.Map{"data": totals})
}

// GetClassmates lists profiles in the requested class.
func (s *ProfileService) GetClassmates(c *fiber.Ctx) error {
	var req struct {
		WantedClass string `json:"wantedClass"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.WantedClass) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid class"})
	}

	var profiles []models.Profile
	if err := s.DB.Where("class = ?", req.WantedClass).Find(&profiles).Error; err != nil {
		log.Printf("DB Error fetching classmates: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(fiber.Map{"data": profiles})
}
