package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SessionStatusActive    = "ACTIVE"
	SessionStatusCompleted = "COMPLETED"
	SessionStatusScoring   = "SCORING"
	SessionStatusScored    = "SCORED"
	SessionStatusFailed    = "FAILED"
)

// TotalSteps is the fixed length of the guided exercise.
const TotalSteps = 8

// PracticeSession is one attempt at the 8-step exercise. At most one row
// per user may be ACTIVE (enforced by a partial unique index); status
// transitions are owned by the session service (ACTIVE->COMPLETED) and the
// scoring service (COMPLETED/FAILED->SCORING->SCORED|FAILED).
type PracticeSession struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	PromptID     uuid.UUID      `gorm:"type:uuid;not null;column:prompt_id" json:"prompt_id"`
	Status       string         `gorm:"not null;default:'ACTIVE';column:status" json:"status"`
	CurrentStep  int            `gorm:"not null;default:1;column:current_step" json:"current_step"`
	CompletedAt  *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	OverallScore *int           `gorm:"column:overall_score" json:"overall_score,omitempty"`
	ScoringJSON  datatypes.JSON `gorm:"type:jsonb;column:scoring_json" json:"scoring_json,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`

	Prompt *Prompt        `gorm:"foreignKey:PromptID" json:"prompt,omitempty"`
	Steps  []*SessionStep `gorm:"foreignKey:SessionID" json:"steps,omitempty"`
}

func (PracticeSession) TableName() string {
	return "practice_session"
}
