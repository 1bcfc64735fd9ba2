package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/stratlab-backend/internal/logger"
	"github.com/yungbote/stratlab-backend/internal/types"
)

type StreakRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Streak, error)
	Create(ctx context.Context, tx *gorm.DB, streak *types.Streak) (*types.Streak, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, updates map[string]interface{}) error
}

type streakRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStreakRepo(db *gorm.DB, baseLog *logger.Logger) StreakRepo {
	return &streakRepo{db: db, log: baseLog.With("repo", "StreakRepo")}
}

func (sr *streakRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Streak, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var streak types.Streak
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&streak).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &streak, nil
}

func (sr *streakRepo) Create(ctx context.Context, tx *gorm.DB, streak *types.Streak) (*types.Streak, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if err := transaction.WithContext(ctx).Create(streak).Error; err != nil {
		return nil, err
	}
	return streak, nil
}

func (sr *streakRepo) UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Streak{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}
