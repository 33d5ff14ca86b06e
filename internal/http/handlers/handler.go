package handlers

import (
	"github.com/Raivel16/gestor-tareas/internal/service"
)

type Handler struct {
	Tasks          *service.TaskService
	Suggestions    *service.SuggestionService
	Auth           *service.AuthService
	Audit          *service.AuditService
	MaxUploadBytes int64
}

func NewHandler(tasks *service.TaskService, suggestions *service.SuggestionService, auth *service.AuthService, audit *service.AuditService, maxUploadBytes int64) *Handler {
	return &Handler{
		Tasks:          tasks,
		Suggestions:    suggestions,
		Auth:           auth,
		Audit:          audit,
		MaxUploadBytes: maxUploadBytes,
	}
}

// getUserID reads the owner id the JWT middleware stored in the Gin context
func getUserID(c interface{ Get(any) (any, bool) }) (int64, bool) {
	uidVal, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	switch v := uidVal.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
