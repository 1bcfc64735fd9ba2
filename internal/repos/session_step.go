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

type SessionStepRepo interface {
	// Upsert writes the step payload, overwriting any earlier save of the
	// same step number.
	Upsert(ctx context.Context, tx *gorm.DB, step *types.SessionStep) (*types.SessionStep, error)
	GetBySessionAndStep(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, stepNumber int) (*types.SessionStep, error)
	ListBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.SessionStep, error)
	CountBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (int64, error)
}

type sessionStepRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionStepRepo(db *gorm.DB, baseLog *logger.Logger) SessionStepRepo {
	return &sessionStepRepo{db: db, log: baseLog.With("repo", "SessionStepRepo")}
}

func (sr *sessionStepRepo) Upsert(ctx context.Context, tx *gorm.DB, step *types.SessionStep) (*types.SessionStep, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "step_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(step).Error; err != nil {
		return nil, err
	}
	return step, nil
}

func (sr *sessionStepRepo) GetBySessionAndStep(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, stepNumber int) (*types.SessionStep, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var step types.SessionStep
	if err := transaction.WithContext(ctx).
		Where("session_id = ? AND step_number = ?", sessionID, stepNumber).
		First(&step).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &step, nil
}

func (sr *sessionStepRepo) ListBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.SessionStep, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.SessionStep
	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("step_number").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *sessionStepRepo) CountBySessionID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.SessionStep{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
