// Package server provides the fiber based HTTP server of the service.
package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// HTTPServer is a fiber app with prioritized middlewares and JSON error responses.
type HTTPServer struct {
	cfg    Config
	router *fiber.App
}

// NewHTTPServer creates a server. Errors returned by handlers and middlewares
// are rendered by WriteErrorResponse unless a response status >= 400 is
// already set.
func NewHTTPServer(cfg Config, middlewares []Middleware) *HTTPServer {
	router := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		ErrorHandler:          customErrorHandler(cfg.HideErrorDetails),
		DisableStartupMessage: true,
		Immutable:             true,
		BodyLimit:             cfg.BodyLimit,
	})

	applyMiddlewares(router, middlewares)

	return &HTTPServer{
		cfg:    cfg,
		router: router,
	}
}

// RegisterRouter calls registerFunc with the root router.
func (s *HTTPServer) RegisterRouter(registerFunc func(r fiber.Router)) {
	registerFunc(s.router)
}

// App exposes the underlying fiber app, mostly for fiber's app.Test.
func (s *HTTPServer) App() *fiber.App {
	return s.router
}

// Start listens on the configured address and blocks until the server stops.
func (s *HTTPServer) Start() error {
	return s.router.Listen(s.cfg.Address())
}

// Stop waits for in-flight requests to complete or for ctx to expire.
func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.router.ShutdownWithContext(ctx)
}
