// Package forward adapts use cases to fiber handlers.
package forward

import (
	"fmt"
	"reflect"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/filesmanager/mask"
	"github.com/rise-and-shine/filesmanager/observability/logger"
	"github.com/rise-and-shine/filesmanager/ucdef"
	"github.com/rise-and-shine/filesmanager/val"
)

const maxLogAllowedSize = 8 << 10

// Option customizes a forwarded handler.
type Option func(*options)

type options struct {
	status int
}

// WithStatus sets the success status code. With 204 the output is not written.
func WithStatus(code int) Option {
	return func(o *options) {
		o.status = code
	}
}

// ToUserAction decodes path params, query params, request headers and a JSON body into I,
// validates it and writes the output of uc as JSON.
// I must be a pointer to a struct.
func ToUserAction[I, O any](uc ucdef.UserAction[I, O], opts ...Option) fiber.Handler {
	o := options{status: fiber.StatusOK}
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *fiber.Ctx) error {
		req, err := newRequest[I]()
		if err != nil {
			return errx.Wrap(err)
		}

		for _, decode := range []func(*fiber.Ctx, I) error{decodePath[I], decodeQuery[I], decodeHeader[I], decodeBody[I]} {
			if err = decode(c, req); err != nil {
				return errx.Wrap(err)
			}
		}

		log := logger.
			Named("http.handler").
			WithContext(c.UserContext()).
			With("operation_id", uc.OperationID())

		if len(c.Body()) <= maxLogAllowedSize {
			log = log.With("request_body", mask.StructToOrdMap(req))
		} else {
			log = log.With("request_body", fmt.Sprintf("too large for logging: %d bytes", len(c.Body())))
		}

		if err = val.ValidateSchema(req); err != nil {
			return errx.Wrap(err)
		}

		resp, err := uc.Execute(c.UserContext(), req)
		if err != nil {
			return errx.Wrap(err)
		}

		if o.status == fiber.StatusNoContent {
			log.Debug("")
			return c.SendStatus(fiber.StatusNoContent)
		}

		size, err := writeJSON(c, o.status, resp)
		if err != nil {
			return errx.Wrap(err)
		}

		if size <= maxLogAllowedSize {
			log = log.With("response_body", mask.StructToOrdMap(resp))
		} else {
			log = log.With("response_body", fmt.Sprintf("too large for logging: %d bytes", size))
		}
		log.Debug("")
		return nil
	}
}

func newRequest[I any]() (I, error) {
	var req I

	reqType := reflect.TypeOf((*I)(nil)).Elem()
	if reqType.Kind() != reflect.Pointer || reqType.Elem().Kind() != reflect.Struct {
		return req, errx.New("input type I must be a pointer to a struct")
	}

	req, _ = reflect.New(reqType.Elem()).Interface().(I)
	return req, nil
}

func writeJSON(c *fiber.Ctx, status int, data any) (int, error) {
	raw, err := c.App().Config().JSONEncoder(data)
	if err != nil {
		return 0, errx.Wrap(err)
	}

	c.Status(status)
	c.Response().SetBodyRaw(raw)
	c.Response().Header.SetContentType(fiber.MIMEApplicationJSON)
	return len(raw), nil
}
