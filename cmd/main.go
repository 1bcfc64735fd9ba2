package main

import (
	"context"
	"time"

	"github.com/yungbote/stratlab-backend/internal/clients/redis"
	"github.com/yungbote/stratlab-backend/internal/db"
	"github.com/yungbote/stratlab-backend/internal/handlers"
	"github.com/yungbote/stratlab-backend/internal/logger"
	"github.com/yungbote/stratlab-backend/internal/middleware"
	"github.com/yungbote/stratlab-backend/internal/repos"
	"github.com/yungbote/stratlab-backend/internal/server"
	"github.com/yungbote/stratlab-backend/internal/services"
	"github.com/yungbote/stratlab-backend/internal/utils"
)

func main() {
	log, err := logger.New("dev")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Database
	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Failed to connect to postgres", "error", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Fatal("Failed to migrate postgres tables", "error", err)
	}
	gormDB := pg.DB()

	// Repos
	userRepo := repos.NewUserRepo(gormDB, log)
	tokenRepo := repos.NewUserTokenRepo(gormDB, log)
	promptRepo := repos.NewPromptRepo(gormDB, log)
	sessionRepo := repos.NewSessionRepo(gormDB, log)
	stepRepo := repos.NewSessionStepRepo(gormDB, log)
	streakRepo := repos.NewStreakRepo(gormDB, log)
	xpEventRepo := repos.NewXPEventRepo(gormDB, log)
	achRepo := repos.NewAchievementRepo(gormDB, log)
	userAchRepo := repos.NewUserAchievementRepo(gormDB, log)

	// Stats cache is optional: without redis the reads just go to postgres.
	statsCache, err := redis.NewStatsCache(log)
	if err != nil {
		log.Warn("Stats cache disabled", "error", err)
		statsCache = nil
	} else {
		defer statsCache.Close()
	}

	// External judge
	judge, err := services.NewJudgeClient(log)
	if err != nil {
		log.Fatal("Failed to configure judge client", "error", err)
	}

	// Services
	jwtSecret := utils.GetEnv("JWT_SECRET_KEY", "", log)
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}
	accessTTL := time.Duration(utils.GetEnvAsInt("ACCESS_TOKEN_TTL_MINUTES", 15, log)) * time.Minute
	refreshTTL := time.Duration(utils.GetEnvAsInt("REFRESH_TOKEN_TTL_HOURS", 24*7, log)) * time.Hour

	authService := services.NewAuthService(gormDB, log, userRepo, tokenRepo, jwtSecret, accessTTL, refreshTTL)
	sessionService := services.NewSessionService(gormDB, log, sessionRepo, stepRepo, promptRepo, time.Now().UnixNano())
	scoringService := services.NewScoringService(gormDB, log, sessionRepo, stepRepo, promptRepo, judge)
	progressionService := services.NewProgressionService(gormDB, log, userRepo, streakRepo, xpEventRepo, sessionRepo, statsCache)
	achievementService := services.NewAchievementService(gormDB, log, achRepo, userAchRepo, userRepo, streakRepo, sessionRepo, progressionService)
	progressionService.SetAchievementService(achievementService)
	promptService := services.NewPromptService(gormDB, log, promptRepo)

	// Catalogs
	seedCtx := context.Background()
	achievementsFile := utils.GetEnv("ACHIEVEMENTS_FILE", "configs/achievements.yaml", log)
	if err := achievementService.SeedFromFile(seedCtx, achievementsFile); err != nil {
		log.Fatal("Failed to seed achievement catalog", "error", err)
	}
	promptsFile := utils.GetEnv("PROMPTS_FILE", "configs/prompts.yaml", log)
	if err := promptService.SeedFromFile(seedCtx, promptsFile); err != nil {
		log.Fatal("Failed to seed prompt catalog", "error", err)
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	sessionHandler := handlers.NewSessionHandler(sessionService, scoringService, progressionService)
	progressionHandler := handlers.NewProgressionHandler(progressionService, xpEventRepo)
	achievementHandler := handlers.NewAchievementHandler(achievementService)
	promptHandler := handlers.NewPromptHandler(promptRepo)
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	router := server.NewRouter(server.RouterConfig{
		AllowedOrigins:     utils.GetEnv("ALLOWED_ORIGINS", "", log),
		AuthHandler:        authHandler,
		AuthMiddleware:     authMiddleware,
		SessionHandler:     sessionHandler,
		ProgressionHandler: progressionHandler,
		AchievementHandler: achievementHandler,
		PromptHandler:      promptHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
