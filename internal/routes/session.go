package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/auth"
)

// RegisterSessionRoutes wires login, anonymous roles and logout.
func RegisterSessionRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/session")
	group.Get("", h.Current)
	group.Post("/login", rateLimiter, h.Login)
	group.Post("/role", h.AssumeRole)
	group.Delete("", h.Logout)
}
