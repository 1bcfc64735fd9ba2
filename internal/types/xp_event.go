package types

import (
	"time"

	"github.com/google/uuid"
)

// XPEvent is one ledger entry in the user's XP history. Every AwardXP call
// writes exactly one row; the sum of a user's rows equals their TotalXP.
type XPEvent struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	SessionID *uuid.UUID `gorm:"type:uuid;column:session_id" json:"session_id,omitempty"`
	Amount    int        `gorm:"not null;column:amount" json:"amount"`
	Reason    string     `gorm:"not null;column:reason" json:"reason"`
	CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (XPEvent) TableName() string {
	return "xp_event"
}
