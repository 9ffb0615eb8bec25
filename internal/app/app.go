// Package app assembles the booking stack from configuration. Every binary
// builds its dependencies through Open so they agree on backends.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/slot-booking/internal/booking"
	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/checkout"
	"github.com/hackgods/slot-booking/internal/config"
	"github.com/hackgods/slot-booking/internal/db"
	"github.com/hackgods/slot-booking/internal/payment"
	redisclient "github.com/hackgods/slot-booking/internal/redis"
	"github.com/hackgods/slot-booking/internal/schedule"
	"github.com/hackgods/slot-booking/internal/slot"
	"github.com/hackgods/slot-booking/internal/storage/memory"
	"github.com/hackgods/slot-booking/internal/storage/postgres"
)

// Store is everything the services persist.
type Store interface {
	catalog.Repository
	slot.Store
	booking.Repository
}

type App struct {
	Config   config.Config
	Store    Store
	Catalog  *catalog.Catalog
	Engine   *booking.Engine
	Checkout *checkout.Service
	Schedule *schedule.View
	Gateway  payment.Gateway

	Pool  *pgxpool.Pool // nil for the memory backend
	Redis *redis.Client // nil for the local lock backend

	log *zap.Logger
}

// Open connects the configured backends, applying migrations when the store
// is Postgres. Close releases whatever Open connected.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, log: log}

	switch cfg.StoreBackend {
	case config.StorePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			return nil, err
		}
		a.Pool = pool
		log.Info("connected to postgres")

		if err := postgres.Migrate(ctx, pool); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.Store = postgres.New(pool)
	default:
		log.Warn("using in-memory store, data is lost on restart")
		a.Store = memory.New()
	}

	if cfg.LockBackend == config.LockRedis {
		rdb, err := redisclient.NewRedisClient(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rdb
		log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	}

	locker, err := redisclient.NewLocker(cfg, a.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}

	gateway, err := payment.New(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Gateway = gateway
	a.Catalog = catalog.New(a.Store, cfg.DefaultCurrency, log)
	a.Engine = booking.NewEngine(a.Store, locker, cfg, log)
	a.Checkout = checkout.NewService(a.Engine, gateway, log)
	a.Schedule = schedule.NewView(a.Store, a.Store)
	return a, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.log.Warn("error closing redis", zap.Error(err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
