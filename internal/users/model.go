// Package users registers accounts and reads the current user.
package users

import (
	"github.com/uptrace/bun"

	"github.com/rise-and-shine/filesmanager/pg"
)

// User is an account. PasswordHash is a bcrypt hash and never leaves the service.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`
	pg.Timestamps

	ID           int64  `bun:"id,pk,autoincrement" json:"id"`
	Email        string `bun:"email,notnull"       json:"email"`
	PasswordHash string `bun:"password_hash,notnull" json:"-"`
}

// View is the public representation of a user.
type View struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func (u *User) View() *View {
	return &View{ID: u.ID, Email: u.Email}
}
