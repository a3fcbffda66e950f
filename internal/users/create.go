package users

import (
	"context"
	"strings"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/hasher"
	"github.com/rise-and-shine/filesmanager/ucdef"
)

const OpCreateUser = "create-user"

type CreateUserInput struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=1,max=72" mask:"true"`
}

type CreateUser = ucdef.UserAction[*CreateUserInput, *View]

type createUser struct {
	repo Repo
}

func NewCreateUser(repo Repo) CreateUser {
	return &createUser{repo: repo}
}

func (uc *createUser) OperationID() string { return OpCreateUser }

func (uc *createUser) Execute(ctx context.Context, in *CreateUserInput) (*View, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	// the unique constraint still guards concurrent registrations
	exists, err := uc.repo.Exists(ctx, Filter{Email: email})
	if err != nil {
		return nil, errx.Wrap(err)
	}
	if exists {
		return nil, errx.New("email already exists",
			errx.WithCode(CodeEmailAlreadyExists),
			errx.WithType(errx.T_Conflict),
		)
	}

	hash, err := hasher.Hash(in.Password)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	user, err := uc.repo.Create(ctx, &User{Email: email, PasswordHash: hash})
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return user.View(), nil
}
