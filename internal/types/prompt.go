package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Prompt is one practice scenario. Rows are seeded from the catalog file
// at startup and the backend only ever reads them afterwards.
type Prompt struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Company     string         `gorm:"not null;column:company" json:"company"`
	Objective   string         `gorm:"not null;column:objective" json:"objective"`
	Difficulty  string         `gorm:"not null;column:difficulty" json:"difficulty"`
	PromptText  string         `gorm:"type:text;not null;column:prompt_text" json:"prompt_text"`
	Constraints datatypes.JSON `gorm:"type:jsonb;column:constraints" json:"constraints,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (Prompt) TableName() string {
	return "prompt"
}
