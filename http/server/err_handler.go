package server

import (
	"errors"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/filesmanager/meta"
)

const codeRouterError = "ROUTER_ERROR"

// WriteErrorResponse renders err as
// {"trace_id": "...", "error": {"code", "message", "cause", "trace", "fields", "details"}}
// and returns it as an errx.ErrorX.
func WriteErrorResponse(c *fiber.Ctx, err error, hideDetails bool) error {
	e := mapAnyErrorToErrorX(err)
	status := mapErrorTypeToHTTPStatusCode(e.Type())

	c.Status(status)
	_ = c.JSON(map[string]any{
		"trace_id": meta.Find(c.UserContext(), meta.TraceID),
		"error":    buildErrorSchema(e, status, hideDetails),
	})

	return e
}

func customErrorHandler(hideDetails bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		// already rendered further down the chain
		if r := c.Response(); r != nil && r.StatusCode() >= fiber.StatusBadRequest {
			return nil
		}

		_ = WriteErrorResponse(c, err, hideDetails)
		return nil
	}
}

type errorSchema struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Cause   string            `json:"cause"`
	Trace   string            `json:"trace,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Details map[string]any    `json:"details,omitempty"`
}

func buildErrorSchema(e errx.ErrorX, status int, hideDetails bool) errorSchema {
	resp := errorSchema{
		Code:    e.Code(),
		Message: errorMessage(status),
		Cause:   e.Error(),
		Fields:  e.Fields(),
	}
	if !hideDetails {
		resp.Trace = e.Trace()
		resp.Details = e.Details()
	}
	return resp
}

// errorMessage is the status text. Internals stay in cause and trace.
func errorMessage(status int) string {
	return fiber.NewError(status).Message
}

// typeStatus pairs errx types with HTTP statuses. Anything else is a 500.
var typeStatus = []struct { //nolint:gochecknoglobals // read-only lookup table
	typ    errx.Type
	status int
}{
	{errx.T_Authentication, fiber.StatusUnauthorized},
	{errx.T_Forbidden, fiber.StatusForbidden},
	{errx.T_NotFound, fiber.StatusNotFound},
	{errx.T_Validation, fiber.StatusBadRequest},
	{errx.T_Conflict, fiber.StatusConflict},
	{errx.T_Throttling, fiber.StatusTooManyRequests},
}

func mapErrorTypeToHTTPStatusCode(t errx.Type) int {
	for _, ts := range typeStatus {
		if ts.typ == t {
			return ts.status
		}
	}
	return fiber.StatusInternalServerError
}

// statusToType is the reverse of mapErrorTypeToHTTPStatusCode. Other 4xx become validation errors.
func statusToType(status int) errx.Type {
	for _, ts := range typeStatus {
		if ts.status == status {
			return ts.typ
		}
	}
	if status >= fiber.StatusBadRequest && status < fiber.StatusInternalServerError {
		return errx.T_Validation
	}
	return errx.T_Internal
}

// mapAnyErrorToErrorX converts fiber's own errors (404 route, 413 body limit...)
// to typed errx errors.
func mapAnyErrorToErrorX(err error) errx.ErrorX {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		err = errx.New(
			fe.Message,
			errx.WithCode(codeRouterError),
			errx.WithType(statusToType(fe.Code)),
			errx.WithDetails(errx.D{"fiber_code": fe.Code}),
		)
	}
	return errx.AsErrorX(err)
}
