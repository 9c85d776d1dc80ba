package middlewares

import (
	"github.com/geocoder89/stockroom/internal/actorctx"
	"github.com/geocoder89/stockroom/internal/apperr"
	"github.com/geocoder89/stockroom/internal/auth"
	"github.com/geocoder89/stockroom/internal/authz"
	"github.com/geocoder89/stockroom/internal/domain/user"
	"github.com/geocoder89/stockroom/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

// Recorder counts auth outcomes; observability.Prom satisfies it.
type Recorder interface {
	RecordAuth(op, outcome string)
}

type AuthMiddleware struct {
	gate *authz.Gate
	rec  Recorder
}

func NewAuthMiddleware(gate *authz.Gate, rec Recorder) *AuthMiddleware {
	return &AuthMiddleware{gate: gate, rec: rec}
}

// RequireAuth resolves the bearer token to a stored user or aborts with 401.
// The user is then visible through UserFromContext and actorctx.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := &authz.Principal{
			Authorization: c.GetHeader("Authorization"),
			LegacyToken:   c.GetHeader("token"),
		}

		if err := authz.Run(c.Request.Context(), p, m.gate.Authenticate()); err != nil {
			m.record("authenticate", outcome(err, p))
			handlers.AbortWithErr(c, err)
			return
		}
		m.record("authenticate", "ok")

		c.Set(CtxPrincipal, p)
		c.Set(CtxUser, *p.User)
		c.Request = c.Request.WithContext(actorctx.WithUser(c.Request.Context(), *p.User))

		c.Next()
	}
}

func (m *AuthMiddleware) record(op, result string) {
	if m.rec != nil {
		m.rec.RecordAuth(op, result)
	}
}

func outcome(err error, p *authz.Principal) string {
	if apperr.KindOf(err) == apperr.KindInternal {
		return "error"
	}
	if p.Failure != auth.FailureNone {
		return p.Failure.String()
	}
	return "unknown_user"
}

func PrincipalFromContext(c *gin.Context) (*authz.Principal, bool) {
	v, ok := c.Get(CtxPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*authz.Principal)
	return p, ok && p != nil
}

func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	u, ok := UserFromContext(c)
	return u.ID, ok && u.ID != ""
}
