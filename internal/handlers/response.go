package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/stratlab-backend/internal/apierr"
)

type APIError struct {
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError maps a service error to its HTTP status through the
// shared code table. Errors without a code become a 500.
func RespondServiceError(c *gin.Context, err error) {
	if ae := apierr.From(err); ae != nil {
		c.JSON(apierr.HTTPStatus(ae.Code), ErrorEnvelope{
			Error: APIError{
				Message: ae.Error(),
				Code:    ae.Code,
				Fields:  ae.Fields,
			},
		})
		return
	}
	RespondError(c, http.StatusInternalServerError, "INTERNAL", err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
