package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/stratlab-backend/internal/logger"
	"github.com/yungbote/stratlab-backend/internal/types"
)

type XPEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, event *types.XPEvent) (*types.XPEvent, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.XPEvent, error)
}

type xpEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewXPEventRepo(db *gorm.DB, baseLog *logger.Logger) XPEventRepo {
	return &xpEventRepo{db: db, log: baseLog.With("repo", "XPEventRepo")}
}

func (xr *xpEventRepo) Create(ctx context.Context, tx *gorm.DB, event *types.XPEvent) (*types.XPEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = xr.db
	}
	if err := transaction.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (xr *xpEventRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.XPEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = xr.db
	}
	query := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var results []*types.XPEvent
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
