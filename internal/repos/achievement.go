package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/stratlab-backend/internal/logger"
	"github.com/yungbote/stratlab-backend/internal/types"
)

type AchievementRepo interface {
	List(ctx context.Context, tx *gorm.DB) ([]*types.Achievement, error)
	ListByEvent(ctx context.Context, tx *gorm.DB, event string) ([]*types.Achievement, error)
	// SeedCatalog inserts catalog rows, leaving existing codes untouched.
	SeedCatalog(ctx context.Context, tx *gorm.DB, achievements []*types.Achievement) error
}

type achievementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAchievementRepo(db *gorm.DB, baseLog *logger.Logger) AchievementRepo {
	return &achievementRepo{db: db, log: baseLog.With("repo", "AchievementRepo")}
}

func (ar *achievementRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Achievement, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var results []*types.Achievement
	if err := transaction.WithContext(ctx).
		Order("code").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *achievementRepo) ListByEvent(ctx context.Context, tx *gorm.DB, event string) ([]*types.Achievement, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var results []*types.Achievement
	if err := transaction.WithContext(ctx).
		Where("event = ?", event).
		Order("code").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *achievementRepo) SeedCatalog(ctx context.Context, tx *gorm.DB, achievements []*types.Achievement) error {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	if len(achievements) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		Create(&achievements).Error
}

type UserAchievementRepo interface {
	// Create returns (nil, nil) when the (user, achievement) pair already
	// exists, so a concurrent duplicate unlock is silently a no-op.
	Create(ctx context.Context, tx *gorm.DB, ua *types.UserAchievement) (*types.UserAchievement, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserAchievement, error)
	UnlockedAchievementIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (map[uuid.UUID]bool, error)
}

type userAchievementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserAchievementRepo(db *gorm.DB, baseLog *logger.Logger) UserAchievementRepo {
	return &userAchievementRepo{db: db, log: baseLog.With("repo", "UserAchievementRepo")}
}

func (ur *userAchievementRepo) Create(ctx context.Context, tx *gorm.DB, ua *types.UserAchievement) (*types.UserAchievement, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	result := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
			DoNothing: true,
		}).
		Create(ua)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, nil
		}
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return ua, nil
}

func (ur *userAchievementRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserAchievement, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	var results []*types.UserAchievement
	if err := transaction.WithContext(ctx).
		Preload("Achievement").
		Where("user_id = ?", userID).
		Order("unlocked_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *userAchievementRepo) UnlockedAchievementIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}
	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.UserAchievement{}).
		Where("user_id = ?", userID).
		Pluck("achievement_id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
