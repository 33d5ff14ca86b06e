package handlers

import (
	"errors"
	"net/http"

	"github.com/Raivel16/gestor-tareas/internal/logger"
	"github.com/Raivel16/gestor-tareas/internal/service"

	"github.com/gin-gonic/gin"
)

// Envelope wraps every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Message: message})
}

// respondError maps service errors to status codes. Anything unexpected is
// logged and reported as a generic failure.
func respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		fail(c, http.StatusBadRequest, verr.Message)
	case errors.Is(err, service.ErrTaskNotFound):
		fail(c, http.StatusNotFound, service.ErrTaskNotFound.Error())
	case errors.Is(err, service.ErrNothingToOrder):
		fail(c, http.StatusBadRequest, service.ErrNothingToOrder.Error())
	case errors.Is(err, service.ErrSuggestionUnavailable):
		fail(c, http.StatusBadGateway, service.ErrSuggestionUnavailable.Error())
	case errors.Is(err, service.ErrSuggestionMalformed):
		fail(c, http.StatusBadGateway, service.ErrSuggestionMalformed.Error())
	case errors.Is(err, service.ErrEmailTaken):
		fail(c, http.StatusConflict, service.ErrEmailTaken.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
	default:
		logger.WithContext(c.Request.Context()).Errorw("request failed", "error", err, "method", c.Request.Method, "path", c.FullPath())
		fail(c, http.StatusInternalServerError, "internal server error")
	}
}
