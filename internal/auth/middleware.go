package auth

import (
	"strconv"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/filesmanager/meta"
)

// RequireUser rejects requests without a valid session token.
func RequireUser(sessions SessionStore) fiber.Handler {
	return newMiddleware(sessions, true)
}

// OptionalUser resolves the token when present. Invalid tokens are treated as anonymous.
func OptionalUser(sessions SessionStore) fiber.Handler {
	return newMiddleware(sessions, false)
}

func newMiddleware(sessions SessionStore, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := c.Get(TokenHeader)
		if tok == "" {
			if required {
				return errUnauthorized("missing session token")
			}
			return c.Next()
		}

		userID, err := sessions.Lookup(c.UserContext(), tok)
		if err != nil {
			return errx.Wrap(err)
		}
		if userID == 0 {
			if required {
				return errUnauthorized("unknown session token")
			}
			return c.Next()
		}

		c.SetUserContext(meta.InjectMetaToContext(c.UserContext(), map[meta.ContextKey]string{
			meta.RequestUserID: strconv.FormatInt(userID, 10),
		}))
		return c.Next()
	}
}
