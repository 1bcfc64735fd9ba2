package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/yungbote/stratlab-backend/internal/logger"
	"github.com/yungbote/stratlab-backend/internal/repos"
	"github.com/yungbote/stratlab-backend/internal/types"
)

// EventContext carries the per-event detail the evaluator cannot read from
// stored state (which session fired, what it scored).
type EventContext struct {
	SessionID    *uuid.UUID
	OverallScore *int
}

// AchievementStatus is a catalog entry plus the caller's unlock state.
type AchievementStatus struct {
	Achievement *types.Achievement `json:"achievement"`
	Unlocked    bool               `json:"unlocked"`
	UnlockedAt  string             `json:"unlocked_at,omitempty"`
}

type AchievementService interface {
	// CheckAchievements runs one evaluation pass for one event. The unlock
	// join record is the only idempotency guard: a rule whose record exists
	// is skipped, so re-running for the same event can never double-award.
	CheckAchievements(ctx context.Context, userID uuid.UUID, event string, evt EventContext) ([]*types.Achievement, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*AchievementStatus, error)
	SeedFromFile(ctx context.Context, path string) error
}

type achievementService struct {
	db         *gorm.DB
	log        *logger.Logger
	achRepo    repos.AchievementRepo
	userAch    repos.UserAchievementRepo
	userRepo   repos.UserRepo
	streakRepo repos.StreakRepo
	sessions   repos.SessionRepo
	xp         XPAwarder
}

func NewAchievementService(db *gorm.DB, baseLog *logger.Logger, achRepo repos.AchievementRepo, userAch repos.UserAchievementRepo, userRepo repos.UserRepo, streakRepo repos.StreakRepo, sessions repos.SessionRepo, xp XPAwarder) AchievementService {
	return &achievementService{
		db:         db,
		log:        baseLog.With("service", "AchievementService"),
		achRepo:    achRepo,
		userAch:    userAch,
		userRepo:   userRepo,
		streakRepo: streakRepo,
		sessions:   sessions,
		xp:         xp,
	}
}

func (as *achievementService) CheckAchievements(ctx context.Context, userID uuid.UUID, event string, evt EventContext) ([]*types.Achievement, error) {
	rules, err := as.achRepo.ListByEvent(ctx, nil, event)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	already, err := as.userAch.UnlockedAchievementIDs(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	var unlocked []*types.Achievement
	for _, rule := range rules {
		if already[rule.ID] {
			continue
		}
		met, err := as.criterionMet(ctx, userID, rule, evt)
		if err != nil {
			return unlocked, err
		}
		if !met {
			continue
		}

		// Record the unlock before granting the bonus: the record is what
		// makes a replay of the same event a no-op.
		ua, err := as.userAch.Create(ctx, nil, &types.UserAchievement{
			ID:            uuid.New(),
			UserID:        userID,
			AchievementID: rule.ID,
			UnlockedAt:    time.Now().UTC(),
		})
		if err != nil {
			return unlocked, err
		}
		if ua == nil {
			// A concurrent pass won the insert.
			continue
		}

		if rule.XPReward > 0 {
			if _, err := as.xp.AwardXP(ctx, userID, rule.XPReward, "achievement:"+rule.Code, evt.SessionID); err != nil {
				as.log.Error("Failed to grant achievement bonus", "user_id", userID.String(), "code", rule.Code, "error", err)
			}
		}
		as.log.Info("Achievement unlocked", "user_id", userID.String(), "code", rule.Code)
		unlocked = append(unlocked, rule)
	}
	return unlocked, nil
}

func (as *achievementService) criterionMet(ctx context.Context, userID uuid.UUID, rule *types.Achievement, evt EventContext) (bool, error) {
	switch rule.Criteria {
	case types.CriteriaSessionCount:
		count, err := as.sessions.CountScoredByUserID(ctx, nil, userID)
		if err != nil {
			return false, err
		}
		return count >= int64(rule.Threshold), nil
	case types.CriteriaStreak:
		streak, err := as.streakRepo.GetByUserID(ctx, nil, userID)
		if err != nil {
			return false, err
		}
		return streak != nil && streak.CurrentStreak >= rule.Threshold, nil
	case types.CriteriaTotalXP:
		user, err := as.userRepo.GetByID(ctx, nil, userID)
		if err != nil {
			return false, err
		}
		return user != nil && user.TotalXP >= int64(rule.Threshold), nil
	case types.CriteriaOverallScore:
		return evt.OverallScore != nil && *evt.OverallScore >= rule.Threshold, nil
	default:
		as.log.Warn("Unknown achievement criteria", "code", rule.Code, "criteria", rule.Criteria)
		return false, nil
	}
}

func (as *achievementService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*AchievementStatus, error) {
	catalog, err := as.achRepo.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	mine, err := as.userAch.ListByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	unlockedAt := make(map[uuid.UUID]string, len(mine))
	for _, ua := range mine {
		unlockedAt[ua.AchievementID] = ua.UnlockedAt.UTC().Format("2006-01-02T15:04:05Z")
	}

	out := make([]*AchievementStatus, 0, len(catalog))
	for _, a := range catalog {
		status := &AchievementStatus{Achievement: a}
		if at, ok := unlockedAt[a.ID]; ok {
			status.Unlocked = true
			status.UnlockedAt = at
		}
		out = append(out, status)
	}
	return out, nil
}

type achievementCatalogFile struct {
	Achievements []struct {
		Code        string `yaml:"code"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		XPReward    int    `yaml:"xp_reward"`
		Event       string `yaml:"event"`
		Criteria    string `yaml:"criteria"`
		Threshold   int    `yaml:"threshold"`
	} `yaml:"achievements"`
}

func (as *achievementService) SeedFromFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading achievement catalog: %w", err)
	}
	var file achievementCatalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parsing achievement catalog: %w", err)
	}

	rows := make([]*types.Achievement, 0, len(file.Achievements))
	for _, a := range file.Achievements {
		if a.Code == "" || a.Event == "" || a.Criteria == "" {
			return fmt.Errorf("achievement catalog entry %q missing code, event or criteria", a.Code)
		}
		rows = append(rows, &types.Achievement{
			ID:          uuid.New(),
			Code:        a.Code,
			Name:        a.Name,
			Description: a.Description,
			XPReward:    a.XPReward,
			Event:       a.Event,
			Criteria:    a.Criteria,
			Threshold:   a.Threshold,
		})
	}
	if err := as.achRepo.SeedCatalog(ctx, nil, rows); err != nil {
		return err
	}
	as.log.Info("Achievement catalog seeded", "entries", len(rows))
	return nil
}
