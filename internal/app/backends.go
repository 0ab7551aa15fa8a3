// Package app opens the storage, slot and event backends named by the
// configuration.
package app

import (
	"context"
	"errors"
	"log/slog"

	"storefront-backend/internal/auth"
	"storefront-backend/internal/catalog"
	"storefront-backend/internal/config"
	"storefront-backend/internal/events"
	"storefront-backend/internal/kv"
	"storefront-backend/internal/store/mongostore"
	"storefront-backend/internal/store/pgstore"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const slotPrefix = "storefront:"

type Backends struct {
	Products  catalog.Repository
	Users     auth.UserRepository
	Slots     kv.Store
	Publisher events.Publisher

	closers []func(context.Context) error
}

// Open connects every configured backend. A backend whose connection
// parameters are missing is replaced by an inert one and a warning is logged;
// a configured backend that cannot be reached is an error.
func Open(ctx context.Context, cfg *config.Config) (*Backends, error) {
	b := &Backends{}
	if err := b.openStores(ctx, cfg); err != nil {
		b.Close(ctx)
		return nil, err
	}
	b.openSlots(ctx, cfg)
	b.openEvents(cfg)
	return b, nil
}

func (b *Backends) openStores(ctx context.Context, cfg *config.Config) error {
	switch cfg.StoreDriver {
	case DriverMemory:
		slog.Warn("Using the in-memory store. Data will not survive a restart.")
		b.Products = catalog.NewMemoryRepository(catalog.SeedCatalog()...)
		b.Users = auth.NewMemoryUsers()
		return nil

	case DriverPostgres:
		if cfg.PostgresURL == "" {
			slog.Warn("DATABASE_URL not set. Product operations will fail.")
			b.Products = catalog.Unavailable{}
		} else {
			db, err := pgstore.Connect(ctx, cfg.PostgresURL)
			if err != nil {
				return err
			}
			products := pgstore.NewProducts(db)
			if err := products.Migrate(ctx); err != nil {
				return err
			}
			b.Products = products
			b.closers = append(b.closers, func(context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			})
			slog.Info("Connected to PostgreSQL")
		}
		// profiles stay in mongo when it is configured
		if cfg.MongoURL == "" {
			slog.Warn("MONGO_URL not set. User accounts are kept in memory.")
			b.Users = auth.NewMemoryUsers()
			return nil
		}
		return b.openMongo(ctx, cfg, false)

	case DriverMongo, "":
		if cfg.MongoURL == "" {
			slog.Warn("MONGO_URL not set. Product and account operations will fail.")
			b.Products = catalog.Unavailable{}
			b.Users = auth.UnavailableUsers{}
			return nil
		}
		return b.openMongo(ctx, cfg, true)

	default:
		return errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
	}
}

func (b *Backends) openMongo(ctx context.Context, cfg *config.Config, withProducts bool) error {
	client, err := mongostore.Connect(ctx, cfg.MongoURL)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, client.Disconnect)

	db := client.Database(cfg.MongoDatabase)
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		return err
	}
	if withProducts {
		b.Products = mongostore.NewProducts(db)
	}
	b.Users = mongostore.NewUsers(db)
	slog.Info("Connected to MongoDB", "database", cfg.MongoDatabase)
	return nil
}

func (b *Backends) openSlots(ctx context.Context, cfg *config.Config) {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL not set. Carts and preferences are kept in memory.")
		b.Slots = kv.NewMemory()
		return
	}
	client, err := kv.Connect(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("Redis unavailable. Carts and preferences are kept in memory.", "error", err)
		b.Slots = kv.NewMemory()
		return
	}
	b.closers = append(b.closers, func(context.Context) error { return client.Close() })
	b.Slots = kv.NewRedis(client, slotPrefix)
	slog.Info("Connected to Redis")
}

func (b *Backends) openEvents(cfg *config.Config) {
	if len(cfg.KafkaBrokers) == 0 {
		b.Publisher = events.Noop{}
		return
	}
	publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		slog.Warn("Kafka publisher disabled", "error", err)
		b.Publisher = events.Noop{}
		return
	}
	b.Publisher = publisher
	b.closers = append(b.closers, func(context.Context) error { return publisher.Close() })
	slog.Info("Publishing product events", "topic", cfg.KafkaTopic)
}

// Close releases backends in reverse order of opening.
func (b *Backends) Close(ctx context.Context) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			slog.Warn("Failed to close backend", "error", err)
		}
	}
	b.closers = nil
}
