package auth

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/internal/users"
	"github.com/rise-and-shine/filesmanager/token"
	"github.com/rise-and-shine/filesmanager/ucdef"
)

const (
	OpConnect    = "connect"
	OpDisconnect = "disconnect"

	// TokenHeader carries the session token.
	TokenHeader = "X-Token"

	DefaultSessionTTL = 24 * time.Hour
)

type ConnectInput struct {
	Authorization string `reqHeader:"Authorization" mask:"true"`
}

type ConnectOutput struct {
	Token string `json:"token" mask:"true"`
}

type Connect = ucdef.UserAction[*ConnectInput, *ConnectOutput]

type connect struct {
	users    users.Repo
	sessions SessionStore
	ttl      time.Duration
}

// NewConnect signs a user in with HTTP Basic credentials.
func NewConnect(repo users.Repo, sessions SessionStore, ttl time.Duration) Connect {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &connect{users: repo, sessions: sessions, ttl: ttl}
}

func (uc *connect) OperationID() string { return OpConnect }

func (uc *connect) Execute(ctx context.Context, in *ConnectInput) (*ConnectOutput, error) {
	email, password, ok := parseBasic(in.Authorization)
	if !ok {
		return nil, errUnauthorized("invalid basic credentials")
	}

	user, err := users.Authenticate(ctx, uc.users, email, password)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	tok := token.NewOpaqueToken()
	if err = uc.sessions.Create(ctx, tok, user.ID, uc.ttl); err != nil {
		return nil, errx.Wrap(err)
	}
	return &ConnectOutput{Token: tok}, nil
}

func parseBasic(header string) (string, string, bool) {
	encoded, ok := strings.CutPrefix(header, "Basic ")
	if !ok {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(raw), ":")
}

type DisconnectInput struct {
	Token string `reqHeader:"X-Token" mask:"true"`
}

type Disconnect = ucdef.UserAction[*DisconnectInput, struct{}]

type disconnect struct {
	sessions SessionStore
}

// NewDisconnect deletes the session of the given token.
func NewDisconnect(sessions SessionStore) Disconnect {
	return &disconnect{sessions: sessions}
}

func (uc *disconnect) OperationID() string { return OpDisconnect }

func (uc *disconnect) Execute(ctx context.Context, in *DisconnectInput) (struct{}, error) {
	if in.Token == "" {
		return struct{}{}, errUnauthorized("missing session token")
	}

	existed, err := uc.sessions.Delete(ctx, in.Token)
	if err != nil {
		return struct{}{}, errx.Wrap(err)
	}
	if !existed {
		return struct{}{}, errUnauthorized("unknown session token")
	}
	return struct{}{}, nil
}
