package forward

import (
	"slices"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
)

const (
	codeInvalidContentType = "INVALID_CONTENT_TYPE"
	codeInvalidJSONBody    = "INVALID_JSON_BODY"
	codeInvalidQueryParams = "INVALID_QUERY_PARAMS"
	codeInvalidPathParams  = "INVALID_PATH_PARAMS"
	codeInvalidHeaders     = "INVALID_HEADERS"
)

// decodeBody decodes a JSON body of POST, PUT and PATCH requests into req.
func decodeBody[I any](c *fiber.Ctx, req I) error {
	if !slices.Contains([]string{fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch}, c.Method()) {
		return nil
	}
	if len(c.Body()) == 0 {
		return nil
	}

	if !c.Is("json") {
		return errx.New(
			"content type must be application/json",
			errx.WithType(errx.T_Validation),
			errx.WithCode(codeInvalidContentType),
		)
	}

	if err := c.BodyParser(req); err != nil {
		return errx.Wrap(err, errx.WithType(errx.T_Validation), errx.WithCode(codeInvalidJSONBody))
	}
	return nil
}

func decodeQuery[I any](c *fiber.Ctx, req I) error {
	if len(c.Queries()) == 0 {
		return nil
	}

	if err := c.QueryParser(req); err != nil {
		return errx.Wrap(err, errx.WithType(errx.T_Validation), errx.WithCode(codeInvalidQueryParams))
	}
	return nil
}

func decodePath[I any](c *fiber.Ctx, req I) error {
	if len(c.Route().Params) == 0 {
		return nil
	}

	if err := c.ParamsParser(req); err != nil {
		return errx.Wrap(err, errx.WithType(errx.T_Validation), errx.WithCode(codeInvalidPathParams))
	}
	return nil
}

// decodeHeader fills fields tagged with reqHeader.
func decodeHeader[I any](c *fiber.Ctx, req I) error {
	if err := c.ReqHeaderParser(req); err != nil {
		return errx.Wrap(err, errx.WithType(errx.T_Validation), errx.WithCode(codeInvalidHeaders))
	}
	return nil
}
