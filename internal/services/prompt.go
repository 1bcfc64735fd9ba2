package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/stratlab-backend/internal/logger"
	"github.com/yungbote/stratlab-backend/internal/repos"
	"github.com/yungbote/stratlab-backend/internal/types"
	"github.com/yungbote/stratlab-backend/internal/validation"
)

type PromptService interface {
	// SeedFromFile loads the catalog file into an empty prompt table. A
	// populated table is left alone so curated edits survive restarts.
	SeedFromFile(ctx context.Context, path string) error
}

type promptService struct {
	db         *gorm.DB
	log        *logger.Logger
	promptRepo repos.PromptRepo
}

func NewPromptService(db *gorm.DB, baseLog *logger.Logger, promptRepo repos.PromptRepo) PromptService {
	return &promptService{
		db:         db,
		log:        baseLog.With("service", "PromptService"),
		promptRepo: promptRepo,
	}
}

type promptCatalogFile struct {
	Prompts []struct {
		Company     string   `yaml:"company"`
		Objective   string   `yaml:"objective"`
		Difficulty  string   `yaml:"difficulty"`
		PromptText  string   `yaml:"prompt_text"`
		Constraints []string `yaml:"constraints"`
	} `yaml:"prompts"`
}

func (ps *promptService) SeedFromFile(ctx context.Context, path string) error {
	count, err := ps.promptRepo.Count(ctx, nil)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading prompt catalog: %w", err)
	}
	var file promptCatalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parsing prompt catalog: %w", err)
	}
	if len(file.Prompts) == 0 {
		return fmt.Errorf("prompt catalog %s has no entries", path)
	}

	rows := make([]*types.Prompt, 0, len(file.Prompts))
	for i, p := range file.Prompts {
		if p.Company == "" || p.PromptText == "" {
			return fmt.Errorf("prompt catalog entry %d missing company or prompt_text", i)
		}
		if _, ok := validation.Objectives[p.Objective]; !ok {
			return fmt.Errorf("prompt catalog entry %d has unknown objective %q", i, p.Objective)
		}
		constraints, err := json.Marshal(p.Constraints)
		if err != nil {
			return err
		}
		rows = append(rows, &types.Prompt{
			ID:          uuid.New(),
			Company:     p.Company,
			Objective:   p.Objective,
			Difficulty:  p.Difficulty,
			PromptText:  p.PromptText,
			Constraints: datatypes.JSON(constraints),
		})
	}

	err = ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	ps.log.Info("Prompt catalog seeded", "entries", len(rows))
	return nil
}
