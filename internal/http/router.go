package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/geocoder89/stockroom/internal/authz"
	"github.com/geocoder89/stockroom/internal/cache"
	"github.com/geocoder89/stockroom/internal/domain/item"
	"github.com/geocoder89/stockroom/internal/domain/user"
	"github.com/geocoder89/stockroom/internal/http/handlers"
	"github.com/geocoder89/stockroom/internal/http/middlewares"
	"github.com/geocoder89/stockroom/internal/observability"
	"github.com/geocoder89/stockroom/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Env      string
	Log      *slog.Logger
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Accounts handlers.Accounts
	Items    handlers.ItemsStore
	Gate     *authz.Gate
	Ping     func(ctx context.Context) error

	ItemsCache   *cache.Cache[[]item.Item]
	LoginLimiter ratelimit.Limiter
	WriteLimiter ratelimit.Limiter

	CORSOrigins  []string
	MaxBodyBytes int64
	ServiceName  string
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.ServiceName == "" {
		d.ServiceName = "stockroom-api"
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(d.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))

	// health
	h := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(d.Gate, d.Prom)
	authHandler := handlers.NewAuthHandler(d.Accounts)
	itemsHandler := handlers.NewItemsHandler(d.Items, d.ItemsCache)

	api := r.Group("/api/v1")
	api.GET("/health", h.Health)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", middlewares.RequireJSON(), authHandler.Register)

	login := []gin.HandlerFunc{middlewares.RequireJSON()}
	if d.LoginLimiter != nil {
		login = append(login, middlewares.RateLimit(d.LoginLimiter, middlewares.KeyByIP))
	}
	authGroup.POST("/login", append(login, authHandler.Login)...)
	authGroup.GET("/me", authMW.RequireAuth(), authHandler.Me)

	items := api.Group("/items")
	items.GET("", itemsHandler.ListItems)
	items.GET("/:id", itemsHandler.GetItemByID)

	// authentication runs before the role check on every mutation
	admin := items.Group("", authMW.RequireAuth(), authMW.RequireRole(user.RoleAdmin))
	if d.WriteLimiter != nil {
		// keyed after auth so each admin gets their own window
		admin.Use(middlewares.RateLimit(d.WriteLimiter, middlewares.KeyByUserOrIP))
	}
	admin.POST("", middlewares.RequireJSON(), itemsHandler.CreateItem)
	admin.PUT("/:id", middlewares.RequireJSON(), itemsHandler.UpdateItem)
	admin.DELETE("/:id", itemsHandler.DeleteItem)

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondError(ctx, http.StatusNotFound, "not_found", "Route not found", nil)
	})

	return r
}
