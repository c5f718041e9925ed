package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/auth"
	"github.com/congo-pay/custody/internal/middleware"
	"github.com/congo-pay/custody/internal/registry"
)

// RegisterAccountRoutes wires registration and the account directory.
// idempotent may be nil when no Redis is configured.
func RegisterAccountRoutes(r fiber.Router, h *auth.Handler, dir *registry.Handler, idempotent fiber.Handler) {
	group := r.Group("/accounts")
	if idempotent != nil {
		group.Post("", idempotent, h.Register)
	} else {
		group.Post("", h.Register)
	}
	group.Get("", dir.List)
	group.Get("/:id", dir.Get)
	group.Get("/:id/address", h.Address)

	self := middleware.RequireSelf("id")
	group.Patch("/:id", self, dir.Update)
	group.Post("/:id/password", self, h.ChangePassword)
	group.Post("/:id/delete", h.Delete)
}
