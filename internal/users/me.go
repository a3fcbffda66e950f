package users

import (
	"context"

	"github.com/code19m/errx"
	"github.com/spf13/cast"

	"github.com/rise-and-shine/filesmanager/meta"
	"github.com/rise-and-shine/filesmanager/ucdef"
)

const OpGetMe = "get-me"

type GetMe = ucdef.UserAction[*struct{}, *View]

type getMe struct {
	repo Repo
}

// NewGetMe returns the user of the current session.
func NewGetMe(repo Repo) GetMe {
	return &getMe{repo: repo}
}

func (uc *getMe) OperationID() string { return OpGetMe }

func (uc *getMe) Execute(ctx context.Context, _ *struct{}) (*View, error) {
	id := cast.ToInt64(meta.Find(ctx, meta.RequestUserID))
	if id == 0 {
		return nil, errUnauthorized()
	}

	user, err := uc.repo.FirstOrNil(ctx, Filter{ID: id})
	if err != nil {
		return nil, errx.Wrap(err)
	}
	if user == nil {
		// the session outlived the account
		return nil, errUnauthorized()
	}
	return user.View(), nil
}

func errUnauthorized() error {
	return errx.New("unauthorized",
		errx.WithCode(CodeUnauthorized),
		errx.WithType(errx.T_Authentication),
	)
}
