package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/stratlab-backend/internal/repos"
)

type PromptHandler struct {
	promptRepo repos.PromptRepo
}

func NewPromptHandler(promptRepo repos.PromptRepo) *PromptHandler {
	return &PromptHandler{promptRepo: promptRepo}
}

func (ph *PromptHandler) List(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	prompts, err := ph.promptRepo.List(c.Request.Context(), nil)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"prompts": prompts})
}
