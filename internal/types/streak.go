package types

import (
	"time"

	"github.com/google/uuid"
)

// Streak counts consecutive calendar days (UTC) with at least one scored
// session. One row per user, written only by the progression service.
type Streak struct {
	ID               uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID           uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;column:user_id" json:"user_id"`
	CurrentStreak    int       `gorm:"not null;default:0;column:current_streak" json:"current_streak"`
	BestStreak       int       `gorm:"not null;default:0;column:best_streak" json:"best_streak"`
	LastActivityDate time.Time `gorm:"not null;column:last_activity_date" json:"last_activity_date"`
	CreatedAt        time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Streak) TableName() string {
	return "streak"
}
