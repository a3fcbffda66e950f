package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/filesmanager/http/server"
	"github.com/rise-and-shine/filesmanager/meta"
	"github.com/rise-and-shine/filesmanager/observability/tracing"
)

// NewMetaInjectMW injects client and service metadata into the request context.
// The user id is filled in later by the auth middleware.
func NewMetaInjectMW(serviceName, serviceVersion string) server.Middleware {
	return server.Middleware{
		Priority: 700,
		Handler: func(c *fiber.Ctx) error {
			ctx := c.UserContext()

			traceID := meta.Find(ctx, meta.TraceID)
			if traceID == "" {
				traceID = tracing.GetStartingTraceID(ctx)
			}

			ctx = meta.InjectMetaToContext(ctx, map[meta.ContextKey]string{
				meta.TraceID:        traceID,
				meta.IPAddress:      c.IP(),
				meta.UserAgent:      c.Get(fiber.HeaderUserAgent),
				meta.RemoteAddr:     c.Context().RemoteAddr().String(),
				meta.Referer:        c.Get(fiber.HeaderReferer),
				meta.ServiceName:    serviceName,
				meta.ServiceVersion: serviceVersion,
			})
			c.SetUserContext(ctx)

			return c.Next()
		},
	}
}
