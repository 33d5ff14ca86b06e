package http

import (
	"github.com/Raivel16/gestor-tareas/internal/config"
	"github.com/Raivel16/gestor-tareas/internal/http/handlers"
	"github.com/Raivel16/gestor-tareas/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the router wires together.
type Deps struct {
	Handler *handlers.Handler
	Health  *handlers.HealthHandler
	Tokens  middleware.TokenParser
	Limiter *middleware.RateLimiter
}

func RegisterRoutes(r *gin.Engine, cfg *config.Config, d Deps) {
	// Health checks and metrics (no rate limiting)
	r.GET("/health", d.Health.Health)
	r.GET("/healthz", d.Health.Liveness)
	r.GET("/readyz", d.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if !cfg.Storage.S3Enabled() {
		r.Static("/uploads", cfg.Storage.UploadDir)
	}

	v1 := r.Group("/api/v1")
	v1.Use(d.Limiter.ByIP("api", cfg.APIRateLimit, cfg.APIRateWindow))
	registerAPIRoutes(v1, cfg, d)
}

func registerAPIRoutes(api *gin.RouterGroup, cfg *config.Config, d Deps) {
	h := d.Handler
	auth := middleware.JWT(d.Tokens)

	authRL := d.Limiter.ByIP("auth", cfg.AuthRateLimit, cfg.AuthRateWindow)
	api.POST("/auth/register", authRL, h.Register)
	api.POST("/auth/login", authRL, h.Login)
	api.POST("/auth/logout", auth, h.Logout)
	api.GET("/auth/me", auth, h.Me)

	tasks := api.Group("/tasks")
	tasks.Use(auth)
	{
		tasks.GET("", h.ListTasks)
		tasks.POST("", h.CreateTask)
		tasks.POST("/reorder", h.ReorderTasks)
		tasks.POST("/suggest-order", d.Limiter.ByUser("suggest", cfg.SuggestRateLimit, cfg.SuggestRateWindow), h.SuggestOrder)
		tasks.PUT("/:id", h.UpdateTask)
		tasks.DELETE("/:id", h.DeleteTask)
		tasks.POST("/:id/move", h.MoveTask)
	}

	api.GET("/activity", auth, h.Activity)
}
