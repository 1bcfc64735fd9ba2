package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/stratlab-backend/internal/services"
)

type AchievementHandler struct {
	achievements services.AchievementService
}

func NewAchievementHandler(achievements services.AchievementService) *AchievementHandler {
	return &AchievementHandler{achievements: achievements}
}

func (ah *AchievementHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	statuses, err := ah.achievements.ListForUser(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"achievements": statuses})
}
