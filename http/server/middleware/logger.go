package middleware

import (
	"time"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/filesmanager/http/server"
	"github.com/rise-and-shine/filesmanager/observability/logger"
)

// NewLoggerMW logs one entry per request: info below 400, warn for 4xx and
// error for 5xx. It runs outside the error handler, so the status is final.
func NewLoggerMW() server.Middleware {
	return server.Middleware{
		Priority: 500,
		Handler: func(c *fiber.Ctx) error {
			start := time.Now()

			err := c.Next()

			status := c.Response().StatusCode()
			log := logger.Named("http.access").
				WithContext(c.UserContext()).
				With(
					"http_status_code", status,
					"http_method", c.Method(),
					"http_path", c.Path(),
					"http_route", c.Route().Path,
					"duration", time.Since(start).String(),
					"query_params", c.Queries(),
					"request_size", len(c.Body()),
				)

			switch {
			case err != nil && status >= fiber.StatusInternalServerError:
				log.Errorx(errx.AsErrorX(err))
			case err != nil:
				log.Warnx(errx.AsErrorX(err))
			default:
				log.Info("request processed")
			}

			return err
		},
	}
}
