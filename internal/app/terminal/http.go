// Package terminal serves one POS terminal: the catalog, the on-screen
// order and its commits over HTTP.
package terminal

import (
	"context"
	"fmt"
	"strconv"

	"pos-terminal/internal/booking"
	"pos-terminal/internal/catalog"
	"pos-terminal/internal/common/db"
	"pos-terminal/internal/common/httpx"
	"pos-terminal/internal/common/kv"
	"pos-terminal/internal/common/logger"
	"pos-terminal/internal/common/mq"
	"pos-terminal/internal/config"
	"pos-terminal/internal/lifecycle"
	"pos-terminal/internal/repository"
)

func Run(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	loc := cfg.Terminal.Location()

	pool, err := db.Connect(ctx, cfg.Database, lg)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := repository.NewPostgres(pool, cfg.Terminal.ID, loc)
	if err := repo.Migrate(ctx); err != nil {
		return err
	}

	broker, err := mq.Dial(cfg.RabbitMQ)
	if err != nil {
		return err
	}
	defer broker.Close()
	if err := broker.DeclareTopology(); err != nil {
		return err
	}

	var snapshots catalog.Snapshots
	if dir := cfg.Terminal.SnapshotDir; dir != "" {
		store, err := kv.Open(dir)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		defer store.Close()
		snapshots = store
	}

	cache := catalog.NewCache(repo, snapshots, lg.Named("catalog"))
	if err := cache.Load(ctx); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	orders := lifecycle.New(lifecycle.Options{
		Catalog:            cache,
		Availability:       catalog.NewIndex(repo),
		Scheduler:          booking.NewScheduler(cfg.Terminal.OpeningHour, cfg.Terminal.ClosingHour, loc),
		Backend:            newPublishingBackend(repo, broker, lg.Named("receipts")),
		Sessions:           repo,
		RoomTaxRatePercent: cfg.Terminal.RoomTaxRate(),
		Logger:             lg.Named("orders"),
	})

	h := NewHandler(orders, cache, repo, repo, loc, lg)
	h.AddReadiness("postgres", pool.Ping)
	h.AddReadiness("rabbitmq", func(context.Context) error { return broker.Ping() })
	srv := httpx.New(":"+strconv.Itoa(cfg.Terminal.Port), h.Router())
	lg.Info("terminal_listening", map[string]any{"port": cfg.Terminal.Port, "terminal_id": cfg.Terminal.ID})
	return srv.Run(ctx)
}
