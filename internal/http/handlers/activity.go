package handlers

import (
	"net/http"
	"strconv"

	"github.com/Raivel16/gestor-tareas/internal/service"

	"github.com/gin-gonic/gin"
)

// Activity returns the caller's audit trail, newest first.
func (h *Handler) Activity(c *gin.Context) {
	userID, found := getUserID(c)
	if !found {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := service.DefaultActivityLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	logs, err := h.Audit.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "", logs)
}
