package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/session"
)

// SessionContext stores a snapshot of the active session in the request's
// user context, read back with session.FromContext.
func SessionContext(sessions *session.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(session.NewContext(c.UserContext(), sessions.Current()))
		return c.Next()
	}
}

// RequireAccount rejects requests unless an account session is active.
func RequireAccount() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !session.FromContext(c.UserContext()).Authenticated() {
			return fiber.NewError(fiber.StatusUnauthorized, "login required")
		}
		return c.Next()
	}
}

// RequireSelf rejects requests whose :param differs from the active account.
func RequireSelf(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := session.FromContext(c.UserContext())
		if !s.Authenticated() {
			return fiber.NewError(fiber.StatusUnauthorized, "login required")
		}
		if s.AccountID != c.Params(param) {
			return fiber.NewError(fiber.StatusForbidden, "not the active account")
		}
		return c.Next()
	}
}
