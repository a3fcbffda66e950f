package files

import (
	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/filesmanager/val"
)

// ContentHandler serves GET /files/:id/data. The body is streamed from the
// blob store with the content type of the resolved path.
func ContentHandler(uc *ResolveContent) fiber.Handler {
	return func(c *fiber.Ctx) error {
		in := &ResolveContentInput{}
		if err := c.ParamsParser(in); err != nil {
			return errx.Wrap(err, errx.WithType(errx.T_Validation), errx.WithCode("INVALID_PATH_PARAMS"))
		}
		if err := c.QueryParser(in); err != nil {
			return errx.Wrap(err, errx.WithType(errx.T_Validation), errx.WithCode("INVALID_QUERY_PARAMS"))
		}
		if err := val.ValidateSchema(in); err != nil {
			return err
		}

		content, err := uc.Execute(c.UserContext(), in)
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, content.ContentType)
		// fasthttp closes the stream once the body is written
		return c.SendStream(content.Content, int(content.Size))
	}
}
