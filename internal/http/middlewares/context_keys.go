package middlewares

// gin context keys set by this package.
const (
	CtxPrincipal = "auth.principal"
	CtxUser      = "auth.user"
)
