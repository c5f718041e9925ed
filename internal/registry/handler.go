package registry

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the account directory.
type Handler struct {
	registry *Registry
}

// NewHandler constructs a directory HTTP handler.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// List returns every profile, ordered by identifier.
func (h *Handler) List(c *fiber.Ctx) error {
	all, err := h.registry.ListAll(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]Profile, 0, len(all))
	for _, p := range all {
		out = append(out, p.Redacted())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortUUID < out[j].ShortUUID })
	return c.JSON(out)
}

// Get returns one profile.
func (h *Handler) Get(c *fiber.Ctx) error {
	profile, err := h.registry.FindByIdentifier(c.UserContext(), c.Params("id"))
	if err != nil {
		return lookupError(err)
	}
	return c.JSON(profile.Redacted())
}

type updateRequest struct {
	FullName         *string `json:"fullName"`
	Country          *string `json:"country"`
	DateOfBirth      *string `json:"dateOfBirth"`
	PhoneCountryCode *string `json:"phoneCountryCode"`
	Phone            *string `json:"phone"`
	Email            *string `json:"email"`
}

// Update edits the contact fields of a profile. Digest, role and chain fields
// are not editable here.
func (h *Handler) Update(c *fiber.Ctx) error {
	id := c.Params("id")
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	profile, err := h.registry.Update(c.UserContext(), id, Patch{
		FullName:         req.FullName,
		Country:          req.Country,
		DateOfBirth:      req.DateOfBirth,
		PhoneCountryCode: req.PhoneCountryCode,
		Phone:            req.Phone,
		Email:            req.Email,
	})
	if err != nil {
		return lookupError(err)
	}
	return c.JSON(profile.Redacted())
}

func lookupError(err error) error {
	if errors.Is(err, ErrUserNotFound) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return fiber.NewError(http.StatusInternalServerError, err.Error())
}
