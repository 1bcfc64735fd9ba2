package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/stratlab-backend/internal/handlers"
	"github.com/yungbote/stratlab-backend/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins     string
	AuthHandler        *handlers.AuthHandler
	AuthMiddleware     *middleware.AuthMiddleware
	SessionHandler     *handlers.SessionHandler
	ProgressionHandler *handlers.ProgressionHandler
	AchievementHandler *handlers.AchievementHandler
	PromptHandler      *handlers.PromptHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := []string{"http://localhost:3000", "http://localhost:5173"}
	if cfg.AllowedOrigins != "" {
		origins = strings.Split(cfg.AllowedOrigins, ",")
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	api.POST("/refresh", cfg.AuthHandler.Refresh)
	api.POST("/logout", cfg.AuthHandler.Logout)
	// Sessions
	api.POST("/sessions", cfg.SessionHandler.Start)
	api.GET("/sessions", cfg.SessionHandler.List)
	api.GET("/sessions/active", cfg.SessionHandler.GetActive)
	api.GET("/sessions/:id", cfg.SessionHandler.Get)
	api.PUT("/sessions/:id/steps/:step", cfg.SessionHandler.SaveStep)
	api.POST("/sessions/:id/complete", cfg.SessionHandler.Complete)
	api.POST("/sessions/:id/score", cfg.SessionHandler.Score)
	// Progression
	api.GET("/progression/stats", cfg.ProgressionHandler.GetStats)
	api.GET("/progression/history", cfg.ProgressionHandler.GetHistory)
	// Achievements
	api.GET("/achievements", cfg.AchievementHandler.List)
	// Prompts
	api.GET("/prompts", cfg.PromptHandler.List)

	return router
}
