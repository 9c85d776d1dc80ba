// Package account implements registration and login on top of the
// credential store, the password hasher and the token issuer.
package account

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/stockroom/internal/apperr"
	"github.com/geocoder89/stockroom/internal/domain/user"
	"github.com/geocoder89/stockroom/internal/repo"
	"github.com/geocoder89/stockroom/internal/validation"
)

const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgUserExists         = "User already exists"
)

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

type TokenIssuer interface {
	Issue(subjectID string) (string, time.Time, error)
}

// Recorder counts auth outcomes; observability.Prom satisfies it.
type Recorder interface {
	RecordAuth(op, outcome string)
}

type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      user.Public `json:"user"`
}

type Service struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	rec    Recorder
	log    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

type Params struct {
	Users    UserStore
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Recorder Recorder
	Logger   *slog.Logger
}

func NewService(p Params) (*Service, error) {
	if p.Users == nil {
		return nil, errors.New("user store is required")
	}
	if p.Hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	if p.Tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}

	return &Service{
		users:  p.Users,
		hasher: p.Hasher,
		tokens: p.Tokens,
		rec:    p.Recorder,
		log:    p.Logger,
	}, nil
}

// Register validates, rejects a taken email and persists a new plain user.
func (s *Service) Register(ctx context.Context, in user.RegisterInput) (user.User, error) {
	in, err := validation.Registration(in)
	if err != nil {
		s.record("register", "validation_error")
		return user.User{}, toValidation(err)
	}

	_, err = s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		s.record("register", "conflict")
		return user.User{}, apperr.New(apperr.KindConflict, MsgUserExists)
	case !errors.Is(err, repo.ErrNotFound):
		s.record("register", "error")
		return user.User{}, apperr.Internal(err, "Registration failed")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.record("register", "error")
		return user.User{}, apperr.Internal(err, "Registration failed")
	}

	created, err := s.users.Create(ctx, user.User{
		Name:         in.Name,
		Email:        in.Email,
		Contact:      in.Contact,
		PasswordHash: hash,
		Role:         user.RoleUser,
	})
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repo.ErrEmailTaken) {
			s.record("register", "conflict")
			return user.User{}, apperr.New(apperr.KindConflict, MsgUserExists)
		}
		s.record("register", "error")
		return user.User{}, apperr.Internal(err, "Registration failed")
	}

	s.record("register", "ok")
	s.log.InfoContext(ctx, "user registered", "user_id", created.ID)

	return created, nil
}

// Login answers every credential mismatch with the same InvalidCredentials error.
func (s *Service) Login(ctx context.Context, in user.LoginInput) (LoginResult, error) {
	in, err := validation.Login(in)
	if err != nil {
		s.record("login", "validation_error")
		return LoginResult{}, toValidation(err)
	}

	found, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.record("login", "error")
			return LoginResult{}, apperr.Internal(err, "Login failed")
		}

		// spend the same bcrypt work as a real comparison
		s.hasher.Verify(in.Password, s.dummy())
		s.record("login", "invalid_credentials")
		return LoginResult{}, apperr.New(apperr.KindInvalidCredentials, MsgInvalidCredentials)
	}

	if !s.hasher.Verify(in.Password, found.PasswordHash) {
		s.record("login", "invalid_credentials")
		s.log.WarnContext(ctx, "login rejected", "user_id", found.ID)
		return LoginResult{}, apperr.New(apperr.KindInvalidCredentials, MsgInvalidCredentials)
	}

	token, expiresAt, err := s.tokens.Issue(found.ID)
	if err != nil {
		s.record("login", "error")
		return LoginResult{}, apperr.Internal(err, "Could not generate access token")
	}

	s.record("login", "ok")

	return LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      found.Public(),
	}, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("stockroom-timing-equalizer")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func (s *Service) record(op, outcome string) {
	if s.rec != nil {
		s.rec.RecordAuth(op, outcome)
	}
}

func toValidation(err error) error {
	var errs validation.Errors
	if errors.As(err, &errs) {
		return apperr.Validation(errs)
	}
	return apperr.Internal(err, "Validation failed")
}
