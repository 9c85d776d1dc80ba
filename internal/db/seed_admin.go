package db

import (
	"context"
	"errors"

	"github.com/geocoder89/stockroom/internal/config"
	"github.com/geocoder89/stockroom/internal/domain/user"
	"github.com/geocoder89/stockroom/internal/repo"
)

type passwordHasher interface {
	Hash(plain string) (string, error)
}

// EnsureAdminUser seeds the configured admin account. Registration only ever
// creates plain users, so this is how the first admin comes to exist.
func EnsureAdminUser(ctx context.Context, users repo.UserStore, hasher passwordHasher, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the user exists
	_, err := users.GetByEmail(ctx, cfg.AdminEmail)

	if err == nil {
		return nil
	}

	if !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	hash, err := hasher.Hash(cfg.AdminPassword)

	if err != nil {
		return err
	}

	_, err = users.Create(ctx, user.User{
		Name:         cfg.AdminName,
		Email:        cfg.AdminEmail,
		Contact:      cfg.AdminContact,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
	})

	// another instance seeded it first
	if errors.Is(err, repo.ErrEmailTaken) {
		return nil
	}

	return err
}
