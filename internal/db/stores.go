package db

import (
	"context"
	"fmt"
	"time"

	"github.com/geocoder89/stockroom/internal/config"
	"github.com/geocoder89/stockroom/internal/repo"
	"github.com/geocoder89/stockroom/internal/repo/memory"
	repomongo "github.com/geocoder89/stockroom/internal/repo/mongo"
	"github.com/geocoder89/stockroom/internal/repo/postgres"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Stores bundles the backend selected by STORE_DRIVER.
type Stores struct {
	Users repo.UserStore
	Items repo.ItemStore
	Ping  func(ctx context.Context) error
	Close func()
}

func Open(ctx context.Context, cfg config.Config, obs repo.Observer) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return &Stores{
			Users: memory.NewUsersRepo(),
			Items: memory.NewItemsRepo(),
			Ping:  func(ctx context.Context) error { return nil },
			Close: func() {},
		}, nil

	case config.StorePostgres:
		if cfg.AutoMigrate {
			if err := Migrate(ctx, cfg.DBURL); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}

		pool, err := NewPool(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}

		return &Stores{
			Users: postgres.NewUsersRepo(pool, obs),
			Items: postgres.NewItemsRepo(pool, obs),
			Ping:  pool.Ping,
			Close: pool.Close,
		}, nil

	case config.StoreMongo:
		client, err := NewMongoClient(cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}

		database := client.Database(cfg.MongoDB)
		users := repomongo.NewUsersRepo(database, obs)

		if err := users.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}

		return &Stores{
			Users: users,
			Items: repomongo.NewItemsRepo(database, obs),
			Ping: func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			},
			Close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(ctx)
			},
		}, nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
