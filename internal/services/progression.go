package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/stratlab-backend/internal/apierr"
	"github.com/yungbote/stratlab-backend/internal/clients/redis"
	"github.com/yungbote/stratlab-backend/internal/logger"
	"github.com/yungbote/stratlab-backend/internal/repos"
	"github.com/yungbote/stratlab-backend/internal/types"
)

// XPForLevel is the cumulative XP needed to reach a level. Level 1 is the
// floor (zero XP); each next level costs level²×100 more than the last.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	var total int64
	for k := 1; k < level; k++ {
		total += int64(k) * int64(k) * 100
	}
	return total
}

// LevelForXP inverts XPForLevel: the highest level whose threshold fits in
// the given total.
func LevelForXP(totalXP int64) int {
	level := 1
	for XPForLevel(level+1) <= totalXP {
		level++
	}
	return level
}

type AwardResult struct {
	TotalXP       int64 `json:"total_xp"`
	Level         int   `json:"level"`
	LeveledUp     bool  `json:"leveled_up"`
	XPToNextLevel int64 `json:"xp_to_next_level"`
}

type CompletionResult struct {
	Award    *AwardResult         `json:"award"`
	Streak   *types.Streak        `json:"streak"`
	Unlocked []*types.Achievement `json:"unlocked"`
}

type UserStats struct {
	Level          int      `json:"level"`
	TotalXP        int64    `json:"total_xp"`
	XPToNextLevel  int64    `json:"xp_to_next_level"`
	CurrentStreak  int      `json:"current_streak"`
	BestStreak     int      `json:"best_streak"`
	SessionsScored int64    `json:"sessions_scored"`
	AverageScore   *float64 `json:"average_score"`
}

// XPAwarder is the single entry point for XP mutation. The achievement
// evaluator grants bonus XP through it rather than touching user rows.
type XPAwarder interface {
	AwardXP(ctx context.Context, userID uuid.UUID, amount int, reason string, sessionID *uuid.UUID) (*AwardResult, error)
}

type ProgressionService interface {
	XPAwarder
	UpdateStreak(ctx context.Context, userID uuid.UUID, activityDate time.Time) (*types.Streak, error)
	ProcessSessionCompletion(ctx context.Context, userID, sessionID uuid.UUID, xpEarned int, overallScore int) (*CompletionResult, error)
	GetStats(ctx context.Context, userID uuid.UUID) (*UserStats, error)
	// SetAchievementService breaks the constructor cycle between the
	// progression engine and the evaluator that feeds XP back into it.
	SetAchievementService(achievements AchievementService)
}

type progressionService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	streakRepo   repos.StreakRepo
	xpEventRepo  repos.XPEventRepo
	sessionRepo  repos.SessionRepo
	statsCache   *redis.StatsCache
	achievements AchievementService
}

func NewProgressionService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo, streakRepo repos.StreakRepo, xpEventRepo repos.XPEventRepo, sessionRepo repos.SessionRepo, statsCache *redis.StatsCache) ProgressionService {
	return &progressionService{
		db:          db,
		log:         baseLog.With("service", "ProgressionService"),
		userRepo:    userRepo,
		streakRepo:  streakRepo,
		xpEventRepo: xpEventRepo,
		sessionRepo: sessionRepo,
		statsCache:  statsCache,
	}
}

func (ps *progressionService) SetAchievementService(achievements AchievementService) {
	ps.achievements = achievements
}

func (ps *progressionService) AwardXP(ctx context.Context, userID uuid.UUID, amount int, reason string, sessionID *uuid.UUID) (*AwardResult, error) {
	if amount <= 0 {
		return nil, apierr.InvalidArgument("xp amount must be positive, got %d", amount)
	}

	var out *AwardResult
	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := ps.userRepo.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return apierr.NotFound("user not found")
		}

		newTotal := user.TotalXP + int64(amount)
		newLevel := LevelForXP(newTotal)
		if err := ps.userRepo.AddXP(ctx, tx, userID, amount, newLevel); err != nil {
			return err
		}

		event := &types.XPEvent{
			ID:        uuid.New(),
			UserID:    userID,
			SessionID: sessionID,
			Amount:    amount,
			Reason:    reason,
		}
		if _, err := ps.xpEventRepo.Create(ctx, tx, event); err != nil {
			return err
		}

		out = &AwardResult{
			TotalXP:       newTotal,
			Level:         newLevel,
			LeveledUp:     newLevel > user.Level,
			XPToNextLevel: XPForLevel(newLevel+1) - newTotal,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ps.statsCache.Invalidate(ctx, userID)
	if out.LeveledUp {
		ps.log.Info("Level up", "user_id", userID.String(), "level", out.Level)
	}
	return out, nil
}

// calendarDaysBetween counts whole UTC calendar days from a to b, ignoring
// time of day.
func calendarDaysBetween(a, b time.Time) int {
	au := time.Date(a.UTC().Year(), a.UTC().Month(), a.UTC().Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.UTC().Year(), b.UTC().Month(), b.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}

func (ps *progressionService) UpdateStreak(ctx context.Context, userID uuid.UUID, activityDate time.Time) (*types.Streak, error) {
	var out *types.Streak
	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		streak, err := ps.streakRepo.GetByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if streak == nil {
			created, err := ps.streakRepo.Create(ctx, tx, &types.Streak{
				ID:               uuid.New(),
				UserID:           userID,
				CurrentStreak:    1,
				BestStreak:       1,
				LastActivityDate: activityDate.UTC(),
			})
			if err != nil {
				return err
			}
			out = created
			return nil
		}

		dayDiff := calendarDaysBetween(streak.LastActivityDate, activityDate)
		current := streak.CurrentStreak
		last := streak.LastActivityDate
		switch {
		case dayDiff <= 0:
			// Already counted today (or clock skew); counts stay put.
		case dayDiff == 1:
			current++
			last = activityDate.UTC()
		default:
			current = 1
			last = activityDate.UTC()
		}
		best := streak.BestStreak
		if current > best {
			best = current
		}

		if err := ps.streakRepo.UpdateFields(ctx, tx, userID, map[string]interface{}{
			"current_streak":     current,
			"best_streak":        best,
			"last_activity_date": last,
			"updated_at":         time.Now().UTC(),
		}); err != nil {
			return err
		}
		streak.CurrentStreak = current
		streak.BestStreak = best
		streak.LastActivityDate = last
		out = streak
		return nil
	})
	if err != nil {
		return nil, err
	}
	ps.statsCache.Invalidate(ctx, userID)
	return out, nil
}

func (ps *progressionService) ProcessSessionCompletion(ctx context.Context, userID, sessionID uuid.UUID, xpEarned int, overallScore int) (*CompletionResult, error) {
	award, err := ps.AwardXP(ctx, userID, xpEarned, "session_score", &sessionID)
	if err != nil {
		return nil, err
	}
	streak, err := ps.UpdateStreak(ctx, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{Award: award, Streak: streak}
	if ps.achievements == nil {
		return result, nil
	}

	// One evaluation pass per event; bonus XP awarded inside a pass never
	// triggers another one.
	evalCtx := EventContext{SessionID: &sessionID, OverallScore: &overallScore}
	for _, event := range []string{types.EventSessionCompleted, types.EventStreakUpdated, types.EventXPAwarded} {
		unlocked, err := ps.achievements.CheckAchievements(ctx, userID, event, evalCtx)
		if err != nil {
			ps.log.Warn("Achievement check failed", "user_id", userID.String(), "event", event, "error", err)
			continue
		}
		result.Unlocked = append(result.Unlocked, unlocked...)
	}
	return result, nil
}

func (ps *progressionService) GetStats(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	var cached UserStats
	if ok := ps.statsCache.Get(ctx, userID, &cached); ok {
		return &cached, nil
	}

	var (
		user   *types.User
		streak *types.Streak
		scored int64
		avg    *float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = ps.userRepo.GetByID(gctx, nil, userID)
		return err
	})
	g.Go(func() error {
		var err error
		streak, err = ps.streakRepo.GetByUserID(gctx, nil, userID)
		return err
	})
	g.Go(func() error {
		var err error
		scored, err = ps.sessionRepo.CountScoredByUserID(gctx, nil, userID)
		return err
	})
	g.Go(func() error {
		var err error
		avg, err = ps.sessionRepo.AvgOverallScoreByUserID(gctx, nil, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apierr.NotFound("user not found")
	}

	stats := &UserStats{
		Level:          user.Level,
		TotalXP:        user.TotalXP,
		XPToNextLevel:  XPForLevel(user.Level+1) - user.TotalXP,
		SessionsScored: scored,
		AverageScore:   avg,
	}
	if streak != nil {
		stats.CurrentStreak = streak.CurrentStreak
		stats.BestStreak = streak.BestStreak
	}

	ps.statsCache.Set(ctx, userID, stats)
	return stats, nil
}
