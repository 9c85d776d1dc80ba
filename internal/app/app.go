// Package app assembles the API from configuration: stores, security,
// limiter, metrics and the router.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/stockroom/internal/account"
	"github.com/geocoder89/stockroom/internal/auth"
	"github.com/geocoder89/stockroom/internal/authz"
	"github.com/geocoder89/stockroom/internal/cache"
	"github.com/geocoder89/stockroom/internal/config"
	"github.com/geocoder89/stockroom/internal/db"
	"github.com/geocoder89/stockroom/internal/domain/item"
	httpx "github.com/geocoder89/stockroom/internal/http"
	"github.com/geocoder89/stockroom/internal/observability"
	"github.com/geocoder89/stockroom/internal/ratelimit"
	"github.com/geocoder89/stockroom/internal/redisclient"
	"github.com/geocoder89/stockroom/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	Router *gin.Engine
	Stores *db.Stores
	Tokens *auth.Manager

	closers []func()
}

// New opens the configured store, seeds the admin and builds the router.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	stores, err := db.Open(ctx, cfg, prom)
	if err != nil {
		return nil, err
	}
	a := &App{Stores: stores, closers: []func(){stores.Close}}

	hasher := security.NewHasher(cfg.BcryptCost)

	if err := db.EnsureAdminUser(ctx, stores.Users, hasher, cfg); err != nil {
		a.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	a.Tokens = auth.NewManager(auth.Config{
		Secret: cfg.JWTSecret,
		TTL:    cfg.JWTTTL,
		Issuer: cfg.JWTIssuer,
	})

	accounts, err := account.NewService(account.Params{
		Users:    stores.Users,
		Hasher:   hasher,
		Tokens:   a.Tokens,
		Recorder: prom,
		Logger:   log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	loginLimiter, writeLimiter := a.limiters(ctx, cfg, log)

	a.Router = httpx.NewRouter(httpx.Deps{
		Env:          cfg.Env,
		Log:          log,
		Prom:         prom,
		Gatherer:     reg,
		Accounts:     accounts,
		Items:        stores.Items,
		Gate:         authz.NewGate(a.Tokens, stores.Users),
		Ping:         stores.Ping,
		ItemsCache:   cache.New[[]item.Item](cfg.ItemsCacheTTL),
		LoginLimiter: loginLimiter,
		WriteLimiter: writeLimiter,
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	return a, nil
}

// limiters builds the login and item-write limiters. Both prefer redis
// so replicas share one window per client.
func (a *App) limiters(ctx context.Context, cfg config.Config, log *slog.Logger) (login, write ratelimit.Limiter) {
	if cfg.LoginRateLimit <= 0 && cfg.WriteRateLimit <= 0 {
		return nil, nil
	}

	var rc *redisclient.Client
	if cfg.RedisAddr != "" {
		rc = redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rc.Ping(pctx)
		cancel()

		if err != nil {
			log.Warn("redis unavailable, using in-process rate limiters", "err", err)
			_ = rc.Close()
			rc = nil
		} else {
			a.closers = append(a.closers, func() { _ = rc.Close() })
		}
	}

	build := func(prefix string, limit int, window time.Duration) ratelimit.Limiter {
		if limit <= 0 {
			return nil
		}
		if rc != nil {
			return ratelimit.NewRedis(rc, prefix, limit, window)
		}
		return ratelimit.NewMemory(limit, window)
	}

	login = build("stockroom:login:", cfg.LoginRateLimit, cfg.LoginRateWindow)
	write = build("stockroom:write:", cfg.WriteRateLimit, cfg.WriteRateWindow)
	return login, write
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
