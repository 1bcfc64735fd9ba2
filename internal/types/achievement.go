package types

import (
	"time"

	"github.com/google/uuid"
)

// Achievement rule events. Each catalog entry binds to exactly one event.
const (
	EventSessionCompleted = "SESSION_COMPLETED"
	EventStreakUpdated    = "STREAK_UPDATED"
	EventXPAwarded        = "XP_AWARDED"
)

// Achievement rule criteria: which piece of state the threshold applies to.
const (
	CriteriaSessionCount = "SESSION_COUNT"
	CriteriaStreak       = "STREAK"
	CriteriaTotalXP      = "TOTAL_XP"
	CriteriaOverallScore = "OVERALL_SCORE"
)

type Achievement struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Code        string    `gorm:"uniqueIndex;not null;column:code" json:"code"`
	Name        string    `gorm:"not null;column:name" json:"name"`
	Description string    `gorm:"not null;column:description" json:"description"`
	XPReward    int       `gorm:"not null;column:xp_reward" json:"xp_reward"`
	Event       string    `gorm:"not null;column:event" json:"event"`
	Criteria    string    `gorm:"not null;column:criteria" json:"criteria"`
	Threshold   int       `gorm:"not null;column:threshold" json:"threshold"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Achievement) TableName() string {
	return "achievement"
}

// UserAchievement is the unlock join record. Its existence is the sole
// idempotency guard against double-unlocking.
type UserAchievement struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_achievement;column:user_id" json:"user_id"`
	AchievementID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_achievement;column:achievement_id" json:"achievement_id"`
	UnlockedAt    time.Time `gorm:"not null;default:now();column:unlocked_at" json:"unlocked_at"`

	Achievement *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
}

func (UserAchievement) TableName() string {
	return "user_achievement"
}
