package users

import (
	"context"
	"strings"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/hasher"
)

// Authenticate returns the user with the given credentials.
// Unknown emails and wrong passwords yield the same authentication error.
func Authenticate(ctx context.Context, repo Repo, email, password string) (*User, error) {
	user, err := repo.FirstOrNil(ctx, Filter{Email: strings.ToLower(strings.TrimSpace(email))})
	if err != nil {
		return nil, errx.Wrap(err)
	}
	if user == nil || !hasher.Compare(password, user.PasswordHash) {
		return nil, errUnauthorized()
	}
	return user, nil
}
