package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/adityarizkyr/session-service/internal/auth/domain"
	"github.com/adityarizkyr/session-service/internal/ratelimit"
)

func RegisterRoutes(app *fiber.App, h *AuthHandler, loginLimiter, forgotLimiter *ratelimit.Limiter) {
	v1 := app.Group("/api/v1")

	v1.Post("/register", h.Register)
	v1.Post("/login", RateLimitByEmail(loginLimiter), h.Login)
	v1.Post("/refresh", h.Refresh)
	v1.Post("/forgot-password", RateLimitByEmail(forgotLimiter), h.ForgotPassword)
	v1.Post("/reset-password", h.ResetPassword)

	v1.Get("/me", h.RequireAuth, h.Me)

	// Admin-only endpoints
	admin := v1.Group("/admin", h.RequireAuth, h.RequireRole(domain.RoleAdmin))
	admin.Delete("/user/:id/sessions", h.ForceLogout)
}
