package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/congo-pay/custody/internal/codec"
)

// RegisterIDRoutes exposes conversion between canonical and compact identifiers.
func RegisterIDRoutes(r fiber.Router, c *codec.Codec) {
	r.Get("/ids/:value", func(ctx *fiber.Ctx) error {
		value := ctx.Params("value")
		if id, err := uuid.Parse(value); err == nil {
			return ctx.JSON(fiber.Map{"canonical": id.String(), "compact": c.Encode(id)})
		}
		id, err := c.Decode(value)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return ctx.JSON(fiber.Map{"canonical": id.String(), "compact": value})
	})
}
