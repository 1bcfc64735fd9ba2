package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SessionStep holds the validated payload for one (session, step) pair.
// Re-saving an earlier step overwrites the row; there is never more than
// one row per pair.
type SessionStep struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_session_step;column:session_id" json:"session_id"`
	StepNumber int            `gorm:"not null;uniqueIndex:idx_session_step;column:step_number" json:"step_number"`
	Payload    datatypes.JSON `gorm:"type:jsonb;not null;column:payload" json:"payload"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (SessionStep) TableName() string {
	return "session_step"
}
