package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/stratlab-backend/internal/logger"
	"github.com/yungbote/stratlab-backend/internal/types"
)

type PromptRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, promptID uuid.UUID) (*types.Prompt, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Prompt, error)
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
	// GetByOffset returns the prompt at a stable position in the catalog
	// (ordered by id) so seeded selection is reproducible.
	GetByOffset(ctx context.Context, tx *gorm.DB, offset int) (*types.Prompt, error)
}

type promptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPromptRepo(db *gorm.DB, baseLog *logger.Logger) PromptRepo {
	return &promptRepo{db: db, log: baseLog.With("repo", "PromptRepo")}
}

func (pr *promptRepo) GetByID(ctx context.Context, tx *gorm.DB, promptID uuid.UUID) (*types.Prompt, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var prompt types.Prompt
	if err := transaction.WithContext(ctx).
		Where("id = ?", promptID).
		First(&prompt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prompt, nil
}

func (pr *promptRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Prompt, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var results []*types.Prompt
	if err := transaction.WithContext(ctx).
		Order("id").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *promptRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Prompt{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (pr *promptRepo) GetByOffset(ctx context.Context, tx *gorm.DB, offset int) (*types.Prompt, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var prompt types.Prompt
	if err := transaction.WithContext(ctx).
		Order("id").
		Offset(offset).
		First(&prompt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prompt, nil
}
