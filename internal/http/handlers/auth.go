package handlers

import (
	"net/http"
	"time"

	"github.com/Raivel16/gestor-tareas/internal/domain"
	"github.com/Raivel16/gestor-tareas/internal/service"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, FullName: u.FullName, Email: u.Email, CreatedAt: u.CreatedAt}
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	u, token, err := h.Auth.Register(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "account created", authResponse{Token: token, User: toUserResponse(u)})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	u, token, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "logged in", authResponse{Token: token, User: toUserResponse(u)})
}

// Logout only acknowledges; the client discards its token.
func (h *Handler) Logout(c *gin.Context) {
	ok(c, http.StatusOK, "logged out", nil)
}

func (h *Handler) Me(c *gin.Context) {
	userID, found := getUserID(c)
	if !found {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	u, err := h.Auth.Me(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "", toUserResponse(u))
}
