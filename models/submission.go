package models

import "time"

// Submission statuses derived from the AI verdict. The mapping is fixed:
// valid→approved, invalid→rejected, needs_review→pending_review,
// anything else→submitted.
const (
	StatusSubmitted     = "submitted"
	StatusApproved      = "approved"
	StatusRejected      = "rejected"
	StatusPendingReview = "pending_review"
)

// TaskSubmission is the audit record of one proof upload. Rows are inserted
// exactly once and never updated or deleted afterwards.
type TaskSubmission struct {
	ID       string  `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string  `gorm:"index;not null" json:"user_id"`
	TaskID   *string `gorm:"index" json:"task_id,omitempty"`
	ProofURL string  `gorm:"type:text;not null" json:"proof_url"`

	// ProofMeta keeps everything needed to audit the automated decision:
	// upload host, its raw response, original filename, full AI decision.
	ProofMeta string `gorm:"type:jsonb" json:"proof_meta"`

	Status    string    `gorm:"type:varchar(16);not null;index" json:"status"`
	AIReason  *string   `gorm:"column:ai_reason;type:text" json:"ai_reason,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (TaskSubmission) TableName() string { return "task_submissions" }

// ProofArchive records the durability mirror of a submission's proof on R2.
// Kept as its own table so the submission row stays append-only.
type ProofArchive struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	SubmissionID string    `gorm:"uniqueIndex;not null" json:"submission_id"`
	ArchiveURL   string    `gorm:"type:text;not null" json:"archive_url"`
	SizeBytes    int64     `json:"size_bytes"`
	ArchivedAt   time.Time `json:"archived_at" gorm:"autoCreateTime"`
}

func (ProofArchive) TableName() string { return "proof_archives" }
