// services/submission_service.go
package services

import (
	"encoding/json"
	"errors"
	"io"
	"log"

	"eco-quest-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubmissionService coordinates the full proof pipeline:
// upload → verdict → reward → persist.
type SubmissionService struct {
	DB         *gorm.DB
	ProofStore *ProofStoreClient
	Gemini     *GeminiClient

	// MaxBytes is the submission size ceiling. Defaults to MaxProofBytes;
	// overridable so tests don't need 128 MiB bodies.
	MaxBytes int64
}

func NewSubmissionService(db *gorm.DB, store *ProofStoreClient, gemini *GeminiClient) *SubmissionService {
	return &SubmissionService{
		DB:         db,
		ProofStore: store,
		Gemini:     gemini,
		MaxBytes:   MaxProofBytes,
	}
}

// proofMeta is the audit blob stored alongside each submission.
type proofMeta struct {
	Source      string         `json:"source"`
	RawResponse string         `json:"raw_response"`
	Filename    string         `json:"filename"`
	Gemini      GeminiDecision `json:"gemini"`
}

// CreateSubmission handles POST /s/submissions. Stages: received →
// object-stored → verified → rewarded → persisted. A verification failure
// never aborts the pipeline — it degrades to an "unknown" verdict so the user
// still gets a persisted, auditable submission. Only the remote upload and
// persistence are fatal.
func (s *SubmissionService) CreateSubmission(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	if s.DB == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database not configured"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing file"})
	}

	// Size gate before the bytes are read anywhere.
	if fileHeader.Size > s.MaxBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "file too large"})
	}

	var taskID *string
	if v := c.FormValue("task_id"); v != "" {
		taskID = &v
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid form data"})
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid form data"})
	}

	filename := fileHeader.Filename
	if filename == "" {
		filename = "upload.bin"
	}

	// object-stored: fatal on failure, and no retry — the host has no
	// idempotency key, so a blind retry risks duplicate orphaned uploads.
	proofURL, rawBody, err := s.ProofStore.Upload(data, filename)
	if err != nil {
		log.Printf("❌ [SUBMISSION] remote upload failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "failed to upload to remote host"})
	}

	// Absent or unknown task id still gets judged; the proof stands on its own.
	var task *models.Task
	if taskID != nil {
		var t models.Task
		err := s.DB.First(&t, "id = ?", *taskID).Error
		switch {
		case err == nil:
			task = &t
		case errors.Is(err, gorm.ErrRecordNotFound):
			// keep going without metadata
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		}
	}

	decision := s.Gemini.ValidateProof(ProofValidationInput{
		ProofURL: proofURL,
		TaskID:   taskID,
		Task:     task,
		UserID:   userID,
	})
	status := MapVerdictToStatus(decision.Verdict)

	var aiReason *string
	if decision.Reason != "" {
		aiReason = &decision.Reason
	}

	var taskXP int64
	if task != nil {
		taskXP = task.XP
	}
	reward := ComputeReward(taskXP, status)

	meta := proofMeta{
		Source:      s.ProofStore.Host(),
		RawResponse: rawBody,
		Filename:    filename,
		Gemini:      decision,
	}
	metaJSON, _ := json.Marshal(meta)

	submission := &models.TaskSubmission{
		ID:        uuid.NewString(),
		UserID:    userID,
		TaskID:    taskID,
		ProofURL:  proofURL,
		ProofMeta: string(metaJSON),
		Status:    status,
		AIReason:  aiReason,
	}

	// Reward and audit row commit or roll back together. The balance update
	// is an atomic SQL increment keyed by user id.
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if reward != nil {
			if err := ApplyReward(tx, userID, reward); err != nil {
				return err
			}
		}
		return tx.Create(submission).Error
	})
	if err != nil {
		// The remote upload already happened and cannot be rolled back; log
		// enough for manual reconciliation.
		log.Printf("❌ [SUBMISSION] persistence failed for user %s (proof %s): %v", userID, proofURL, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Printf("📸 [SUBMISSION] user=%s status=%s verdict=%s proof=%s", userID, status, decision.Verdict, proofURL)

	return c.JSON(fiber.Map{
		"id":         submission.ID,
		"proof_url":  proofURL,
		"created_at": submission.CreatedAt,
		"status":     status,
		"validation": decision,
		"reward":     reward,
	})
}

// ListSubmissions returns the caller's submissions, newest first.
func (s *SubmissionService) ListSubmissions(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var subs []models.TaskSubmission
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(100).
		Find(&subs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch submissions"})
	}
	return c.JSON(fiber.Map{"data": subs})
}
