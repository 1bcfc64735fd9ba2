package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/stratlab-backend/internal/repos"
	"github.com/yungbote/stratlab-backend/internal/services"
)

type ProgressionHandler struct {
	progression services.ProgressionService
	xpEventRepo repos.XPEventRepo
}

func NewProgressionHandler(progression services.ProgressionService, xpEventRepo repos.XPEventRepo) *ProgressionHandler {
	return &ProgressionHandler{progression: progression, xpEventRepo: xpEventRepo}
}

func (ph *ProgressionHandler) GetStats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	stats, err := ph.progression.GetStats(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"stats": stats})
}

func (ph *ProgressionHandler) GetHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			RespondError(c, http.StatusBadRequest, "INVALID_ARGUMENT", fmt.Errorf("limit must be an integer between 1 and 500"))
			return
		}
		limit = parsed
	}
	events, err := ph.xpEventRepo.ListByUserID(c.Request.Context(), nil, userID, limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"events": events})
}
