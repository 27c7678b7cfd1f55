package domain

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Name       string    `bun:"name,notnull"`
	Email      string    `bun:"email,notnull"`
	IsProvider bool      `bun:"provider,notnull"`
	AvatarID   *int64    `bun:"avatar_id"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`

	Avatar *File `bun:"rel:belongs-to,join:avatar_id=id"`
}

func (u *User) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		if u.UpdatedAt.IsZero() {
			u.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		u.UpdatedAt = now
	}
	return nil
}

// Mailbox renders the user as an RFC 5322 address. The display name is quoted,
// or RFC 2047 encoded when it is not plain ASCII.
func (u User) Mailbox() string {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		return u.Email
	}
	return (&mail.Address{Name: name, Address: u.Email}).String()
}

type File struct {
	bun.BaseModel `bun:"table:files"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull"`
	Path      string    `bun:"path,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`

	URL string `bun:"-"`
}

func (f *File) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		if f.UpdatedAt.IsZero() {
			f.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		f.UpdatedAt = now
	}
	return nil
}

// ResolveURL fills URL with the public location of the file under baseURL.
func (f *File) ResolveURL(baseURL string) {
	if f == nil {
		return
	}
	f.URL = strings.TrimRight(baseURL, "/") + "/files/" + strings.TrimLeft(f.Path, "/")
}
