// Package repo defines the store contracts shared by every backend.
package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/stockroom/internal/domain/item"
	"github.com/geocoder89/stockroom/internal/domain/user"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrEmailTaken  = errors.New("email already in use")
	ErrInvalidUser = errors.New("invalid user record")
)

// UserStore persists credentials. Create must enforce email uniqueness itself
// and surface a violation as ErrEmailTaken.
type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

type ItemStore interface {
	Create(ctx context.Context, in item.Input) (item.Item, error)
	List(ctx context.Context) ([]item.Item, error)
	GetByID(ctx context.Context, id string) (item.Item, error)
	Update(ctx context.Context, id string, in item.Input) (item.Item, error)
	Delete(ctx context.Context, id string) error
}

// PrepareUser applies the creation rules every UserStore shares: the email
// is normalized, an unset role becomes RoleUser and a hash is mandatory.
func PrepareUser(u user.User) (user.User, error) {
	u.Email = user.NormalizeEmail(u.Email)

	if u.Role == "" {
		u.Role = user.RoleUser
	}
	if !u.Role.Valid() {
		return user.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, u.Role)
	}
	if strings.TrimSpace(u.PasswordHash) == "" {
		return user.User{}, fmt.Errorf("%w: password hash is empty", ErrInvalidUser)
	}

	return u, nil
}

// Observer times a logical store operation.
type Observer interface {
	ObserveDB(op string, fn func() error) error
}

// Observe runs fn through obs when one is configured.
func Observe(obs Observer, op string, fn func() error) error {
	if obs != nil {
		return obs.ObserveDB(op, fn)
	}
	return fn()
}
