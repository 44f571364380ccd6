package bootstrap

import (
	"context"

	"github.com/Domenick1991/parking/config"
	"github.com/Domenick1991/parking/internal/cache"
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/kafka"
	"github.com/Domenick1991/parking/internal/migrations"
	"github.com/Domenick1991/parking/internal/pricing"
	"github.com/Domenick1991/parking/internal/repository"
	"github.com/Domenick1991/parking/internal/repository/memory"
	"github.com/Domenick1991/parking/internal/service/catalog"
	"github.com/Domenick1991/parking/internal/service/reservation"
	"github.com/Domenick1991/parking/internal/slotlock"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the wired services and the connections behind them.
type App struct {
	Catalog      *catalog.CatalogService
	Reservations *reservation.ReservationService
	// Cache is nil unless redis.addr is configured.
	Cache *cache.RedisCache

	closers []func()
}

type stores struct {
	floors       repository.FloorRepository
	slots        repository.SlotRepository
	reservations repository.ReservationRepository
	locker       slotlock.Locker
}

// New connects the configured storage, cache and event producer and builds
// the services on top of them. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	app := &App{}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	st, err := app.openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	opts := []reservation.Option{
		reservation.WithLogger(log.Named("reservation")),
		reservation.WithMaxDuration(cfg.Reservation.MaxDuration),
		reservation.WithMaxPageSize(cfg.Reservation.MaxPageSize),
		reservation.WithCancelRetries(cfg.Reservation.CancelRetries),
	}

	var catalogCache catalog.Cache
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Reservation.AvailabilityCacheTTL)
		app.closers = append(app.closers, func() { _ = redisCache.Close() })
		if err := redisCache.Ping(ctx); err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}
		app.Cache = redisCache
		catalogCache = redisCache
		opts = append(opts, reservation.WithCache(redisCache))

		if cfg.Reservation.LockMode == config.LockModeRedis {
			st.locker = slotlock.NewRedisLocker(st.locker, st.slots, redisCache,
				cfg.Reservation.LockTTL, cfg.Reservation.LockRetryInterval, log.Named("slotlock"))
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.MaxAttempts, log.Named("kafka"))
		app.closers = append(app.closers, func() { _ = producer.Close() })
		opts = append(opts, reservation.WithProducer(producer, cfg.Kafka.ReservationTopic))
	}

	app.Catalog = catalog.NewCatalogService(st.floors, st.slots, catalogCache, log.Named("catalog"))
	app.Reservations = reservation.NewReservationService(st.reservations, st.locker, pricing.NewCalculator(pricingRates(cfg.Pricing)), opts...)

	ok = true
	return app, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Info("using in-memory storage")
		store := memory.NewStore()
		return &stores{
			floors:       store.Floors(),
			slots:        store.Slots(),
			reservations: store.Reservations(),
			locker:       slotlock.NewMutexLocker(store.Slots(), store.Reservations()),
		}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	a.closers = append(a.closers, pool.Close)
	if err := pool.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, "ping postgres")
	}

	if cfg.Database.MigrateOnStart {
		log.Info("applying migrations")
		if err := migrations.Up(ctx, pool); err != nil {
			return nil, err
		}
	}

	return &stores{
		floors:       repository.NewFloorRepository(pool),
		slots:        repository.NewSlotRepository(pool),
		reservations: repository.NewReservationRepository(pool),
		locker:       slotlock.NewRowLocker(pool),
	}, nil
}

func pricingRates(cfg config.PricingConfig) pricing.Rates {
	rates := make(pricing.Rates, len(cfg.HourlyRates))
	for class, rate := range cfg.HourlyRates {
		rates[domain.VehicleType(class)] = rate
	}
	return rates
}
