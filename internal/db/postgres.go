package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yungbote/stratlab-backend/internal/logger"
	"github.com/yungbote/stratlab-backend/internal/types"
	"github.com/yungbote/stratlab-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "stratlab", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	serviceLog.Info("Connecting to Postgres...")
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := gormDB.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gormDB, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.Prompt{},
		&types.PracticeSession{},
		&types.SessionStep{},
		&types.XPEvent{},
		&types.Streak{},
		&types.Achievement{},
		&types.UserAchievement{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	// Single ACTIVE session per user, enforced at the database so two tabs
	// racing through StartSession cannot both win.
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_session
		ON "practice_session"("user_id")
		WHERE status = 'ACTIVE'
	`).Error; err != nil {
		return fmt.Errorf("failed to create idx_one_active_session: %w", err)
	}

	s.log.Info("Configuring foreign key relationships for postgres tables...")
	constraints := []struct {
		name  string
		table string
		col   string
		ref   string
	}{
		{"fk_user_token_user_id", "user_token", "user_id", `"user"("id")`},
		{"fk_practice_session_user_id", "practice_session", "user_id", `"user"("id")`},
		{"fk_practice_session_prompt_id", "practice_session", "prompt_id", `"prompt"("id")`},
		{"fk_session_step_session_id", "session_step", "session_id", `"practice_session"("id")`},
		{"fk_xp_event_user_id", "xp_event", "user_id", `"user"("id")`},
		{"fk_streak_user_id", "streak", "user_id", `"user"("id")`},
		{"fk_user_achievement_user_id", "user_achievement", "user_id", `"user"("id")`},
		{"fk_user_achievement_achievement_id", "user_achievement", "achievement_id", `"achievement"("id")`},
	}
	for _, c := range constraints {
		stmt := fmt.Sprintf(`
			DO $$ BEGIN
				ALTER TABLE %q ADD CONSTRAINT %q FOREIGN KEY (%q) REFERENCES %s ON DELETE CASCADE;
			EXCEPTION WHEN duplicate_object THEN NULL;
			END $$;
		`, c.table, c.name, c.col, c.ref)
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to add %s: %w", c.name, err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
