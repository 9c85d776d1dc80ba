// Package repotest holds behavioural tests every store backend must pass.
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/geocoder89/stockroom/internal/domain/item"
	"github.com/geocoder89/stockroom/internal/domain/user"
	"github.com/geocoder89/stockroom/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func sampleUser(email string) user.User {
	return user.User{
		Name:         "Ann",
		Email:        email,
		Contact:      "1234567890",
		PasswordHash: "$2a$04$placeholderplaceholderplaceholderplaceholderplacehold",
		Role:         user.RoleUser,
	}
}

// UserStore runs the credential store contract against a fresh store per subtest.
func UserStore(t *testing.T, newStore func(t *testing.T) repo.UserStore) {
	t.Run("create assigns identity and timestamps", func(t *testing.T) {
		s := newStore(t)
		u, err := s.Create(context.Background(), sampleUser("ann@x.com"))
		require.NoError(t, err)

		assert.NotEmpty(t, u.ID)
		assert.False(t, u.CreatedAt.IsZero())
		assert.False(t, u.UpdatedAt.IsZero())
		assert.Equal(t, user.RoleUser, u.Role)
	})

	t.Run("lookup by email and id", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(context.Background(), sampleUser("ann@x.com"))
		require.NoError(t, err)

		byEmail, err := s.GetByEmail(context.Background(), "ann@x.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)
		assert.Equal(t, created.PasswordHash, byEmail.PasswordHash)

		byID, err := s.GetByID(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, "ann@x.com", byID.Email)
	})

	t.Run("missing user", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetByEmail(context.Background(), "nobody@x.com")
		assert.ErrorIs(t, err, repo.ErrNotFound)

		_, err = s.GetByID(context.Background(), "does-not-exist")
		assert.ErrorIs(t, err, repo.ErrNotFound)
	})

	t.Run("unset role defaults to user", func(t *testing.T) {
		s := newStore(t)
		in := sampleUser("norole@x.com")
		in.Role = ""

		created, err := s.Create(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, user.RoleUser, created.Role)

		stored, err := s.GetByEmail(context.Background(), "norole@x.com")
		require.NoError(t, err)
		assert.Equal(t, user.RoleUser, stored.Role)
	})

	t.Run("empty password hash is rejected", func(t *testing.T) {
		s := newStore(t)
		in := sampleUser("nohash@x.com")
		in.PasswordHash = ""

		_, err := s.Create(context.Background(), in)
		assert.ErrorIs(t, err, repo.ErrInvalidUser)

		_, err = s.GetByEmail(context.Background(), "nohash@x.com")
		assert.ErrorIs(t, err, repo.ErrNotFound)
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		s := newStore(t)
		in := sampleUser("root@x.com")
		in.Role = user.Role("root")

		_, err := s.Create(context.Background(), in)
		assert.ErrorIs(t, err, repo.ErrInvalidUser)
	})

	t.Run("duplicate email is rejected by the store", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(context.Background(), sampleUser("ann@x.com"))
		require.NoError(t, err)

		_, err = s.Create(context.Background(), sampleUser("ann@x.com"))
		assert.ErrorIs(t, err, repo.ErrEmailTaken)
	})

	t.Run("concurrent duplicate registrations admit exactly one", func(t *testing.T) {
		s := newStore(t)

		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ok      int
			clashes int
		)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Create(context.Background(), sampleUser("race@x.com"))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, repo.ErrEmailTaken):
					clashes++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, ok)
		assert.Equal(t, workers-1, clashes)
	})
}

// ItemStore runs the item store contract against a fresh store per subtest.
func ItemStore(t *testing.T, newStore func(t *testing.T) repo.ItemStore) {
	in := item.Input{ItemName: "Hammer", Quantity: intPtr(3), Description: "claw", Category: "Tools"}

	t.Run("create then get", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(context.Background(), in)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, 3, created.Quantity)

		got, err := s.GetByID(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ItemName, got.ItemName)
		assert.Equal(t, created.Category, got.Category)
		assert.Equal(t, created.Description, got.Description)
	})

	t.Run("list", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(context.Background(), in)
		require.NoError(t, err)
		_, err = s.Create(context.Background(), item.Input{ItemName: "Saw", Quantity: intPtr(1), Category: "Tools"})
		require.NoError(t, err)

		items, err := s.List(context.Background())
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("update replaces fields", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(context.Background(), in)
		require.NoError(t, err)

		updated, err := s.Update(context.Background(), created.ID, item.Input{ItemName: "Mallet", Quantity: intPtr(7), Category: "Hardware"})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "Mallet", updated.ItemName)
		assert.Equal(t, 7, updated.Quantity)
		assert.Equal(t, "", updated.Description)
		assert.Equal(t, "Hardware", updated.Category)
		assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(context.Background(), in)
		require.NoError(t, err)

		require.NoError(t, s.Delete(context.Background(), created.ID))

		_, err = s.GetByID(context.Background(), created.ID)
		assert.ErrorIs(t, err, repo.ErrNotFound)
		assert.ErrorIs(t, s.Delete(context.Background(), created.ID), repo.ErrNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetByID(context.Background(), "nope")
		assert.ErrorIs(t, err, repo.ErrNotFound)

		_, err = s.Update(context.Background(), "nope", in)
		assert.ErrorIs(t, err, repo.ErrNotFound)
	})
}
