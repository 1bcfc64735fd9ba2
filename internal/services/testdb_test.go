package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/stratlab-backend/internal/logger"
	"github.com/yungbote/stratlab-backend/internal/repos"
	"github.com/yungbote/stratlab-backend/internal/types"
)

var testDBCounter int64

// The schema is written by hand because the production DDL (uuid defaults,
// jsonb, partial indexes) is postgres-only. Services always set ids and
// timestamps in Go, so defaults are not needed here.
var testSchema = []string{
	`CREATE TABLE "user" (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		total_xp INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE user_token (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE prompt (
		id TEXT PRIMARY KEY,
		company TEXT NOT NULL DEFAULT '',
		objective TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT '',
		prompt_text TEXT NOT NULL DEFAULT '',
		constraints TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE practice_session (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		prompt_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		current_step INTEGER NOT NULL DEFAULT 1,
		completed_at DATETIME,
		overall_score INTEGER,
		scoring_json TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE session_step (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		step_number INTEGER NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (session_id, step_number)
	)`,
	`CREATE TABLE xp_event (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT,
		amount INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at DATETIME
	)`,
	`CREATE TABLE streak (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		current_streak INTEGER NOT NULL DEFAULT 0,
		best_streak INTEGER NOT NULL DEFAULT 0,
		last_activity_date DATETIME NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE achievement (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		xp_reward INTEGER NOT NULL DEFAULT 0,
		event TEXT NOT NULL DEFAULT '',
		criteria TEXT NOT NULL DEFAULT '',
		threshold INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME
	)`,
	`CREATE TABLE user_achievement (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		achievement_id TEXT NOT NULL,
		unlocked_at DATETIME NOT NULL,
		UNIQUE (user_id, achievement_id)
	)`,
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range testSchema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("creating test schema: %v", err)
		}
	}
	return db
}

func newTestLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

type testEnv struct {
	db          *gorm.DB
	log         *logger.Logger
	userRepo    repos.UserRepo
	tokenRepo   repos.UserTokenRepo
	promptRepo  repos.PromptRepo
	sessionRepo repos.SessionRepo
	stepRepo    repos.SessionStepRepo
	streakRepo  repos.StreakRepo
	xpEventRepo repos.XPEventRepo
	achRepo     repos.AchievementRepo
	userAchRepo repos.UserAchievementRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger()
	return &testEnv{
		db:          db,
		log:         log,
		userRepo:    repos.NewUserRepo(db, log),
		tokenRepo:   repos.NewUserTokenRepo(db, log),
		promptRepo:  repos.NewPromptRepo(db, log),
		sessionRepo: repos.NewSessionRepo(db, log),
		stepRepo:    repos.NewSessionStepRepo(db, log),
		streakRepo:  repos.NewStreakRepo(db, log),
		xpEventRepo: repos.NewXPEventRepo(db, log),
		achRepo:     repos.NewAchievementRepo(db, log),
		userAchRepo: repos.NewUserAchievementRepo(db, log),
	}
}

func (e *testEnv) createUser(t *testing.T) *types.User {
	t.Helper()
	user := &types.User{
		ID:    uuid.New(),
		Email: fmt.Sprintf("%s@example.com", uuid.New().String()[:8]),
		Level: 1,
	}
	if _, err := e.userRepo.Create(context.Background(), nil, user); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return user
}

func (e *testEnv) createPrompt(t *testing.T) *types.Prompt {
	t.Helper()
	prompt := &types.Prompt{
		ID:         uuid.New(),
		Company:    "Streamline",
		Objective:  "RETENTION",
		Difficulty: "MEDIUM",
		PromptText: "Monthly churn has crept up in single-seat accounts.",
	}
	if err := e.db.Create(prompt).Error; err != nil {
		t.Fatalf("creating prompt: %v", err)
	}
	return prompt
}
