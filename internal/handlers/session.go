package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/stratlab-backend/internal/requestdata"
	"github.com/yungbote/stratlab-backend/internal/services"
)

type SessionHandler struct {
	sessionService services.SessionService
	scoringService services.ScoringService
	progression    services.ProgressionService
}

func NewSessionHandler(sessionService services.SessionService, scoringService services.ScoringService, progression services.ProgressionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		scoringService: scoringService,
		progression:    progression,
	}
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", nil)
		return uuid.Nil, false
	}
	return rd.UserID, true
}

func sessionIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ARGUMENT", err)
		return uuid.Nil, false
	}
	return id, true
}

func (sh *SessionHandler) Start(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	session, err := sh.sessionService.Start(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": session})
}

func (sh *SessionHandler) GetActive(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	session, err := sh.sessionService.GetActive(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	// No active session is a valid answer, not a 404.
	RespondOK(c, gin.H{"session": session})
}

func (sh *SessionHandler) SaveStep(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	stepNumber, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ARGUMENT", err)
		return
	}
	var payload json.RawMessage
	if err := c.ShouldBindJSON(&payload); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ARGUMENT", err)
		return
	}

	session, err := sh.sessionService.SaveStep(c.Request.Context(), sessionID, userID, stepNumber, payload)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": session})
}

func (sh *SessionHandler) Complete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	session, err := sh.sessionService.Complete(c.Request.Context(), sessionID, userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": session})
}

func (sh *SessionHandler) Score(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	outcome, err := sh.scoringService.Score(c.Request.Context(), sessionID, userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	overall := 0
	if outcome.Session.OverallScore != nil {
		overall = *outcome.Session.OverallScore
	}
	completion, err := sh.progression.ProcessSessionCompletion(c.Request.Context(), userID, sessionID, outcome.XPEarned, overall)
	if err != nil {
		// The score is already persisted; report it with the progression
		// failure attached rather than discarding the verdict.
		RespondOK(c, gin.H{
			"session":           outcome.Session,
			"result":            outcome.Result,
			"xp_earned":         outcome.XPEarned,
			"progression_error": err.Error(),
		})
		return
	}
	RespondOK(c, gin.H{
		"session":   outcome.Session,
		"result":    outcome.Result,
		"xp_earned": outcome.XPEarned,
		"award":     completion.Award,
		"streak":    completion.Streak,
		"unlocked":  completion.Unlocked,
	})
}

func (sh *SessionHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}
	session, err := sh.sessionService.Get(c.Request.Context(), sessionID, userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": session})
}

func (sh *SessionHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	sessions, err := sh.sessionService.List(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"sessions": sessions})
}
