package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/chainkey"
	"github.com/congo-pay/custody/internal/keycipher"
	"github.com/congo-pay/custody/internal/registry"
	"github.com/congo-pay/custody/internal/session"
)

// Handler exposes registration, login and session endpoints.
type Handler struct {
	svc      *Service
	sessions *session.Manager
}

func NewHandler(svc *Service, sessions *session.Manager) *Handler {
	return &Handler{svc: svc, sessions: sessions}
}

type registerRequest struct {
	FullName         string `json:"fullName"`
	Country          string `json:"country"`
	DateOfBirth      string `json:"dateOfBirth"`
	PhoneCountryCode string `json:"phoneCountryCode"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	PrivateKey       string `json:"privateKey"`
}

type sessionResponse struct {
	Kind    string            `json:"kind"`
	Role    string            `json:"role"`
	ID      string            `json:"id,omitempty"`
	Profile *registry.Profile `json:"profile,omitempty"`
}

func sessionView(s session.Session, profile *registry.Profile) sessionResponse {
	return sessionResponse{Kind: s.Kind.String(), Role: s.Role, ID: s.AccountID, Profile: profile}
}

// Register creates an account and logs it in.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	profile, err := h.svc.Register(c.UserContext(), RegisterInput{
		FullName:         req.FullName,
		Country:          req.Country,
		DateOfBirth:      req.DateOfBirth,
		PhoneCountryCode: req.PhoneCountryCode,
		Phone:            req.Phone,
		Email:            req.Email,
		Password:         req.Password,
		PrivateKey:       req.PrivateKey,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(profile.Redacted())
}

type loginRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

// Login verifies credentials and activates the account session.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.ID == "" {
		return fiber.NewError(http.StatusBadRequest, "id is required")
	}
	profile, err := h.svc.Login(c.UserContext(), req.ID, req.Password)
	if err != nil {
		return httpError(err)
	}
	view := profile.Redacted()
	return c.JSON(sessionView(h.sessions.Current(), &view))
}

type roleRequest struct {
	Role string `json:"role"`
}

// AssumeRole switches to an anonymous role session.
func (h *Handler) AssumeRole(c *fiber.Ctx) error {
	var req roleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.sessions.AssumeRole(c.UserContext(), req.Role); err != nil {
		return httpError(err)
	}
	return c.JSON(sessionView(h.sessions.Current(), nil))
}

// Logout clears the session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.svc.Logout(c.UserContext()); err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"status": "logged_out"})
}

// Current reports the active session.
func (h *Handler) Current(c *fiber.Ctx) error {
	return c.JSON(sessionView(h.sessions.Current(), nil))
}

type passwordRequest struct {
	Current string `json:"current"`
	Next    string `json:"next"`
}

// ChangePassword re-encrypts the account key under a new password.
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	var req passwordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ChangePassword(c.UserContext(), c.Params("id"), req.Current, req.Next); err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"status": "password_changed"})
}

type deleteRequest struct {
	Password string `json:"password"`
}

// Delete removes the account after verifying its password.
func (h *Handler) Delete(c *fiber.Ctx) error {
	var req deleteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.DeleteAccount(c.UserContext(), c.Params("id"), req.Password); err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

// Address resolves the public address of an account by compact id or uuid.
func (h *Handler) Address(c *fiber.Ctx) error {
	address, err := h.svc.ResolveAddress(c.UserContext(), c.Params("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "address": address})
}

// httpError maps domain errors to HTTP statuses. Login failures never say
// which check rejected the password.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrWeakPassword),
		errors.Is(err, registry.ErrInvalidProfile),
		errors.Is(err, chainkey.ErrInvalidKey),
		errors.Is(err, session.ErrUnknownRole):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAddressMismatch):
		return fiber.NewError(http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, registry.ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, registry.ErrUserNotFound.Error())
	case errors.Is(err, registry.ErrIdentifierTaken):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, keycipher.ErrDecode):
		return fiber.NewError(http.StatusUnprocessableEntity, "stored credential is unreadable")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
