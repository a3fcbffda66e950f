package middleware

import (
	"runtime"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/filesmanager/http/server"
	"github.com/rise-and-shine/filesmanager/observability/logger"
)

const stackTraceSize = 4 << 10

// NewRecoveryMW converts a panic in the chain into an internal error.
func NewRecoveryMW() server.Middleware {
	return server.Middleware{
		Priority: 1000,
		Handler: func(c *fiber.Ctx) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				stack := make([]byte, stackTraceSize)
				stack = stack[:runtime.Stack(stack, false)]

				logger.Named("http.recovery").
					WithContext(c.UserContext()).
					With("stack_trace", string(stack), "panic_message", r).
					Error("recovered from panic")

				err = errx.New("panic recovered", errx.WithDetails(errx.D{
					"stack_trace":   string(stack),
					"panic_message": r,
				}))
			}()

			return c.Next()
		},
	}
}
