package authz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/stockroom/internal/apperr"
	"github.com/geocoder89/stockroom/internal/auth"
	"github.com/geocoder89/stockroom/internal/authz"
	"github.com/geocoder89/stockroom/internal/domain/user"
	"github.com/geocoder89/stockroom/internal/repo/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	users  *memory.UsersRepo
	tokens *auth.Manager
	gate   *authz.Gate
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{users: memory.NewUsersRepo(), now: epoch}
	f.tokens = auth.NewManager(auth.Config{Secret: "gate-secret", TTL: time.Hour, Issuer: "stockroom"}).
		WithClock(func() time.Time { return f.now })
	f.gate = authz.NewGate(f.tokens, f.users)
	return f
}

func (f *fixture) seed(t *testing.T, role user.Role) (user.User, string) {
	t.Helper()

	u, err := f.users.Create(context.Background(), user.User{
		Name: "Ann", Email: string(role) + "@x.com", Contact: "1234567890", PasswordHash: "h", Role: role,
	})
	require.NoError(t, err)

	token, _, err := f.tokens.Issue(u.ID)
	require.NoError(t, err)
	return u, token
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", authz.BearerToken("Bearer abc", ""))
	assert.Equal(t, "abc", authz.BearerToken("bearer   abc ", ""))
	assert.Equal(t, "legacy", authz.BearerToken("", "legacy"))
	assert.Equal(t, "legacy", authz.BearerToken("Bearer ", " legacy "))
	assert.Equal(t, "", authz.BearerToken("Basic abc", ""))
	assert.Equal(t, "", authz.BearerToken("", ""))
}

func TestAuthenticate_ResolvesUser(t *testing.T) {
	f := newFixture(t)
	u, token := f.seed(t, user.RoleUser)

	p := &authz.Principal{Authorization: "Bearer " + token}
	require.NoError(t, authz.Run(context.Background(), p, f.gate.Authenticate()))

	require.True(t, p.Authenticated())
	assert.Equal(t, u.ID, p.User.ID)
	assert.Equal(t, u.ID, p.Claims.Subject)
	assert.Equal(t, auth.FailureNone, p.Failure)
}

func TestAuthenticate_Failures(t *testing.T) {
	f := newFixture(t)
	_, token := f.seed(t, user.RoleUser)

	ghost, err := f.users.Create(context.Background(), user.User{Name: "Gone", Email: "gone@x.com", PasswordHash: "h", Role: user.RoleUser})
	require.NoError(t, err)
	ghostToken, _, err := f.tokens.Issue(ghost.ID)
	require.NoError(t, err)
	f.users.Delete(ghost.ID)

	tests := []struct {
		name    string
		header  string
		advance time.Duration
		msg     string
		failure auth.Failure
	}{
		{"missing", "", 0, authz.MsgNoToken, auth.FailureMissing},
		{"garbage", "Bearer nope", 0, authz.MsgTokenInvalid, auth.FailureMalformed},
		{"expired", "Bearer " + token, time.Hour + time.Second, authz.MsgTokenExpired, auth.FailureExpired},
		{"deleted subject", "Bearer " + ghostToken, 0, authz.MsgUserNotFound, auth.FailureNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.now = epoch.Add(tt.advance)
			defer func() { f.now = epoch }()

			p := &authz.Principal{Authorization: tt.header}
			err := authz.Run(context.Background(), p, f.gate.Authenticate())

			require.Error(t, err)
			assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
			assert.Equal(t, tt.msg, apperr.As(err).Message())
			assert.Equal(t, tt.failure, p.Failure)
			assert.False(t, p.Authenticated())
		})
	}
}

type failingFinder struct{ err error }

func (f failingFinder) GetByID(ctx context.Context, id string) (user.User, error) {
	return user.User{}, f.err
}

func TestAuthenticate_StoreFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	_, token := f.seed(t, user.RoleUser)

	gate := authz.NewGate(f.tokens, failingFinder{err: errors.New("connection refused")})
	err := authz.Run(context.Background(), &authz.Principal{Authorization: "Bearer " + token}, gate.Authenticate())

	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestRequireRole(t *testing.T) {
	f := newFixture(t)
	_, userToken := f.seed(t, user.RoleUser)
	_, adminToken := f.seed(t, user.RoleAdmin)

	pipeline := []authz.Guard{f.gate.Authenticate(), authz.RequireRole(user.RoleAdmin)}

	err := authz.Run(context.Background(), &authz.Principal{Authorization: "Bearer " + userToken}, pipeline...)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, authz.MsgAdminRequired, apperr.As(err).Message())

	assert.NoError(t, authz.Run(context.Background(), &authz.Principal{Authorization: "Bearer " + adminToken}, pipeline...))
}

func TestRequireRole_UnauthenticatedNeverReachesRoleCheck(t *testing.T) {
	f := newFixture(t)

	roleChecked := false
	spy := func(ctx context.Context, p *authz.Principal) error {
		roleChecked = true
		return authz.RequireRole(user.RoleAdmin)(ctx, p)
	}

	err := authz.Run(context.Background(), &authz.Principal{}, f.gate.Authenticate(), spy)

	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	assert.False(t, roleChecked)
}

func TestRequireRole_WithoutAuthentication(t *testing.T) {
	err := authz.RequireRole(user.RoleAdmin)(context.Background(), &authz.Principal{})
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	err = authz.RequireRole(user.RoleUser)(context.Background(), &authz.Principal{User: &user.User{ID: "1", Role: user.RoleAdmin}})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, authz.MsgRoleRequired, apperr.As(err).Message())
}
