package middleware

import (
	"context"
	"time"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/filesmanager/http/server"
	"github.com/rise-and-shine/filesmanager/meta"
	"github.com/rise-and-shine/filesmanager/observability/alert"
	"github.com/rise-and-shine/filesmanager/observability/logger"
)

const alertSendTimeout = 3 * time.Second

// NewAlertingMW sends an alert for every internal error. Alerts are sent in
// the background and never delay the response.
func NewAlertingMW() server.Middleware {
	return server.Middleware{
		Priority: 600,
		Handler: func(c *fiber.Ctx) error {
			err := c.Next()
			if err == nil {
				return nil
			}

			e := errx.AsErrorX(err)
			if e.Type() != errx.T_Internal {
				return err
			}

			// read the request context only after the handler ran, the auth
			// middleware sets the user id on it
			ctx := c.UserContext()
			operation := c.Method() + " " + c.Route().Path

			details := map[string]string{"error_trace": e.Trace()}
			for k, v := range meta.ExtractMetaFromContext(ctx) {
				details[string(k)] = v
			}

			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertSendTimeout)
			go func() {
				defer cancel()

				sendErr := alert.SendError(sendCtx, e.Code(), e.Error(), operation, details)
				if sendErr != nil {
					logger.Named("http.alerting").
						WithContext(sendCtx).
						With("alert_send_error", sendErr.Error()).
						Warn("failed to send alert")
				}
			}()

			return err
		},
	}
}
