// Package authz implements the authorization gate: an ordered pipeline of
// guards run before a protected operation. Authentication resolves the
// bearer token to a stored user; role checks then run against that user.
package authz

import (
	"context"
	"errors"
	"strings"

	"github.com/geocoder89/stockroom/internal/apperr"
	"github.com/geocoder89/stockroom/internal/auth"
	"github.com/geocoder89/stockroom/internal/domain/user"
	"github.com/geocoder89/stockroom/internal/repo"
)

const (
	MsgNoToken       = "Access denied. No token provided."
	MsgTokenExpired  = "Token expired. Please login again."
	MsgTokenInvalid  = "Invalid token."
	MsgUserNotFound  = "Invalid token. User not found."
	MsgAuthRequired  = "Authentication required."
	MsgAdminRequired = "Access denied. Admin privileges required."
	MsgRoleRequired  = "Access denied. Insufficient privileges."
	msgAuthFailed    = "Authentication failed."
	bearerPrefix     = "bearer "
)

type TokenVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

type UserFinder interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// Principal is what the guards read and fill in as a request moves through them.
type Principal struct {
	// Authorization is the raw Authorization header.
	Authorization string
	// LegacyToken is the bare `token` header older clients send.
	LegacyToken string

	User    *user.User
	Claims  *auth.Claims
	Failure auth.Failure
}

func (p *Principal) Authenticated() bool {
	return p != nil && p.User != nil
}

// Guard is one stage of the pipeline. A non-nil error stops the pipeline.
type Guard func(ctx context.Context, p *Principal) error

// Run applies guards in order and stops at the first failure.
func Run(ctx context.Context, p *Principal, guards ...Guard) error {
	for _, g := range guards {
		if err := g(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

type Gate struct {
	tokens TokenVerifier
	users  UserFinder
}

func NewGate(tokens TokenVerifier, users UserFinder) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// BearerToken extracts the token from "Bearer <t>", falling back to the legacy header.
func BearerToken(authorization, legacy string) string {
	h := strings.TrimSpace(authorization)
	if len(h) >= len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		if t := strings.TrimSpace(h[len(bearerPrefix):]); t != "" {
			return t
		}
	}
	return strings.TrimSpace(legacy)
}

// Authenticate verifies the bearer token and loads its subject.
func (g *Gate) Authenticate() Guard {
	return func(ctx context.Context, p *Principal) error {
		raw := BearerToken(p.Authorization, p.LegacyToken)

		claims, err := g.tokens.Verify(raw)
		if err != nil {
			p.Failure = auth.Outcome(err)
			switch p.Failure {
			case auth.FailureMissing:
				return apperr.New(apperr.KindUnauthenticated, MsgNoToken)
			case auth.FailureExpired:
				return apperr.Wrap(apperr.KindUnauthenticated, err, MsgTokenExpired)
			default:
				return apperr.Wrap(apperr.KindUnauthenticated, err, MsgTokenInvalid)
			}
		}

		u, err := g.users.GetByID(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return apperr.Wrap(apperr.KindUnauthenticated, err, MsgUserNotFound)
			}
			return apperr.Internal(err, msgAuthFailed)
		}

		p.Claims = claims
		p.User = &u
		p.Failure = auth.FailureNone
		return nil
	}
}

// RequireRole passes only an authenticated principal holding role.
func RequireRole(role user.Role) Guard {
	return func(ctx context.Context, p *Principal) error {
		if !p.Authenticated() {
			return apperr.New(apperr.KindUnauthenticated, MsgAuthRequired)
		}

		if p.User.Role != role {
			msg := MsgRoleRequired
			if role == user.RoleAdmin {
				msg = MsgAdminRequired
			}
			return apperr.New(apperr.KindForbidden, msg)
		}

		return nil
	}
}
