package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/app"
	"github.com/congo-pay/custody/internal/routes"
)

// Server wraps the Fiber application bound to one App.
type Server struct {
	fiber *fiber.App
	addr  string
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(a *app.App) (*Server, error) {
	f := fiber.New(fiber.Config{
		AppName:               a.Config.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		UnescapePath:          true,
		DisableStartupMessage: !a.Config.IsDev(),
	})

	err := routes.Setup(f, routes.Deps{
		Cfg:      a.Config,
		Backend:  a.Resources.Backend,
		Cache:    a.Resources.Cache,
		Logger:   a.Logger,
		Codec:    a.Codec,
		Auth:     a.Auth,
		Registry: a.Registry,
		Sessions: a.Sessions,
	})
	if err != nil {
		return nil, err
	}
	return &Server{fiber: f, addr: a.Config.ListenAddr}, nil
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App { return s.fiber }

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.fiber.Listen(s.addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.fiber.ShutdownWithContext(ctx)
}
