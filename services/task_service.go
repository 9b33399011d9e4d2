// services/task_service.go
package services

import (
	"log"

	"eco-quest-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaskService struct {
	DB *gorm.DB
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{DB: db}
}

// defaultTasks is the launch catalog of recycling actions.
var defaultTasks = []models.Task{
	{ID: "bottle", Name: "Şişe", Desc: "Plastik bir şişeyi geri dönüşüme at", XP: 150, ProofType: "image", Active: true},
	{ID: "metal", Name: "Metal", Desc: "Metal bir atığı geri dönüşüme at", XP: 200, ProofType: "image", Active: true},
	{ID: "paper", Name: "Kağıt", Desc: "Kağıdı geri dönüşüme at.", XP: 100, ProofType: "image", Active: true},
}

// SeedTasks inserts the launch catalog, skipping rows that already exist.
func (s *TaskService) SeedTasks() error {
	for _, task := range defaultTasks {
		if err := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&task).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetActiveTaskIDs returns the ids of active tasks (bare array, the app's
// task picker only needs ids).
func (s *TaskService) GetActiveTaskIDs(c *fiber.Ctx) error {
	var ids []string
	if err := s.DB.Model(&models.Task{}).
		Where("active = ?", true).
		Pluck("id", &ids).Error; err != nil {
		log.Printf("DB Error fetching task ids: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch tasks"})
	}
	return c.JSON(ids)
}

// GetTaskCatalog returns full active task rows.
func (s *TaskService) GetTaskCatalog(c *fiber.Ctx) error {
	var tasks []models.Task
	if err := s.DB.Where("active = ?", true).Find(&tasks).Error; err != nil {
		log.Printf("DB Error fetching task catalog: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch tasks"})
	}
	return c.JSON(fiber.Map{"data": tasks})
}

// CreateTask adds a new eco-task. The id is a slug of the name so it stays
// URL-safe ("Cam Şişe" → "cam-sise").
func (s *TaskService) CreateTask(c *fiber.Ctx) error {
	var req struct {
		Name      string `json:"name"`
		Desc      string `json:"desc"`
		XP        int64  `json:"xp"`
		ProofType string `json:"proof_type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}
	if req.XP < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "xp must not be negative"})
	}
	if req.ProofType == "" {
		req.ProofType = "image"
	}

	task := &models.Task{
		ID:        slug.Make(req.Name),
		Name:      req.Name,
		Desc:      req.Desc,
		XP:        req.XP,
		ProofType: req.ProofType,
		Active:    true,
	}
	if err := s.DB.Create(task).Error; err != nil {
		log.Printf("DB Error creating task: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create task"})
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}
