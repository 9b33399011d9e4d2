// workers/archive_worker.go
package workers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"time"

	"eco-quest-system/models"
	"eco-quest-system/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProofArchiver mirrors remote-host proofs into R2 so the audit trail
// survives the upload host's retention window. Sweeps are idempotent: a
// submission is archived once, failures retry on the next sweep.
type ProofArchiver struct {
	DB         *gorm.DB
	HTTPClient *http.Client
	Upload     func(data []byte, key, contentType string) (string, error)
	BatchSize  int
}

func NewProofArchiver(db *gorm.DB) *ProofArchiver {
	return &ProofArchiver{
		DB:         db,
		HTTPClient: utils.HTTPClient,
		Upload:     utils.UploadBytesToR2,
		BatchSize:  20,
	}
}

// SweepOnce archives up to BatchSize submissions that have no archive row
// yet, oldest first. Returns how many were mirrored.
func (a *ProofArchiver) SweepOnce(ctx context.Context) (int, error) {
	var pending []models.TaskSubmission
	err := a.DB.WithContext(ctx).
		Where("id NOT IN (?)", a.DB.Model(&models.ProofArchive{}).Select("submission_id")).
		Order("created_at ASC").
		Limit(a.BatchSize).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	archived := 0
	for _, sub := range pending {
		if ctx.Err() != nil {
			return archived, ctx.Err()
		}
		if err := a.archiveOne(ctx, sub); err != nil {
			log.Printf("⚠️ [ARCHIVE] submission %s: %v", sub.ID, err)
			continue
		}
		archived++
	}
	return archived, nil
}

func (a *ProofArchiver) archiveOne(ctx context.Context, sub models.TaskSubmission) error {
	req, err := http.NewRequestWithContext(ctx, "GET", sub.ProofURL, nil)
	if err != nil {
		return err
	}
	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("proof fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proof fetch returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	archiveURL, err := a.Upload(data, archiveKey(sub), contentType)
	if err != nil {
		return err
	}

	return a.DB.WithContext(ctx).Create(&models.ProofArchive{
		ID:           uuid.NewString(),
		SubmissionID: sub.ID,
		ArchiveURL:   archiveURL,
		SizeBytes:    int64(len(data)),
	}).Error
}

func archiveKey(sub models.TaskSubmission) string {
	ext := ""
	if u, err := url.Parse(sub.ProofURL); err == nil {
		ext = path.Ext(u.Path)
	}
	return "proofs/" + sub.ID + ext
}

// StartScheduler runs a sweep every minute until ctx is cancelled.
func (a *ProofArchiver) StartScheduler(ctx context.Context) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("❌ [ARCHIVE] scheduler init failed: %v", err)
		return
	}

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			n, err := a.SweepOnce(ctx)
			if err != nil {
				log.Printf("❌ [ARCHIVE] sweep error: %v", err)
				return
			}
			if n > 0 {
				log.Printf("🗄️ [ARCHIVE] mirrored %d proof(s) to R2", n)
			}
		}),
	)

	sched.Start()
	go func() {
		<-ctx.Done()
		_ = sched.Shutdown()
	}()
}
