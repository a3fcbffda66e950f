package auth

import "github.com/code19m/errx"

const CodeUnauthorized = "UNAUTHORIZED"

func errUnauthorized(msg string) error {
	return errx.New(msg,
		errx.WithCode(CodeUnauthorized),
		errx.WithType(errx.T_Authentication),
	)
}
