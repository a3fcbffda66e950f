package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/filesmanager/http/server"
)

// NewErrorHandlerMW renders errors as JSON inside the chain so that the
// logger and tracing middlewares observe the final status code.
func NewErrorHandlerMW(hideDetails bool) server.Middleware {
	return server.Middleware{
		Priority: 400,
		Handler: func(c *fiber.Ctx) error {
			err := c.Next()
			if err == nil {
				return nil
			}

			if c.Response().StatusCode() >= fiber.StatusBadRequest {
				return err
			}
			return server.WriteErrorResponse(c, err, hideDetails)
		},
	}
}
