package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/stratlab-backend/internal/logger"
	"github.com/yungbote/stratlab-backend/internal/types"
)

type SessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, session *types.PracticeSession) (*types.PracticeSession, error)
	GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.PracticeSession, error)
	GetByIDWithDetail(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.PracticeSession, error)
	GetActiveByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.PracticeSession, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.PracticeSession, error)
	// UpdateFieldsIfStatus applies updates only while the session is still in
	// one of the given statuses. Returns the number of rows changed so
	// callers can detect a lost optimistic race.
	UpdateFieldsIfStatus(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, statuses []string, updates map[string]interface{}) (int64, error)
	CountScoredByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	AvgOverallScoreByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*float64, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (sr *sessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.PracticeSession) (*types.PracticeSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if err := transaction.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (sr *sessionRepo) GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.PracticeSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var session types.PracticeSession
	if err := transaction.WithContext(ctx).
		Where("id = ?", sessionID).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (sr *sessionRepo) GetByIDWithDetail(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.PracticeSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var session types.PracticeSession
	if err := transaction.WithContext(ctx).
		Preload("Prompt").
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number")
		}).
		Where("id = ?", sessionID).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (sr *sessionRepo) GetActiveByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.PracticeSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var session types.PracticeSession
	if err := transaction.WithContext(ctx).
		Preload("Prompt").
		Where("user_id = ? AND status = ?", userID, types.SessionStatusActive).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (sr *sessionRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.PracticeSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.PracticeSession
	if err := transaction.WithContext(ctx).
		Preload("Prompt").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *sessionRepo) UpdateFieldsIfStatus(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, statuses []string, updates map[string]interface{}) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	result := transaction.WithContext(ctx).
		Model(&types.PracticeSession{}).
		Where("id = ? AND status IN ?", sessionID, statuses).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (sr *sessionRepo) CountScoredByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.PracticeSession{}).
		Where("user_id = ? AND status = ?", userID, types.SessionStatusScored).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (sr *sessionRepo) AvgOverallScoreByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*float64, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var avg *float64
	if err := transaction.WithContext(ctx).
		Model(&types.PracticeSession{}).
		Select("AVG(overall_score)").
		Where("user_id = ? AND status = ?", userID, types.SessionStatusScored).
		Scan(&avg).Error; err != nil {
		return nil, err
	}
	return avg, nil
}
