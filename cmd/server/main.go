package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/block-seat-reservation/internal/clock"
	"github.com/iliyamo/block-seat-reservation/internal/config"
	"github.com/iliyamo/block-seat-reservation/internal/database"
	"github.com/iliyamo/block-seat-reservation/internal/handler"
	"github.com/iliyamo/block-seat-reservation/internal/logger"
	"github.com/iliyamo/block-seat-reservation/internal/middleware"
	"github.com/iliyamo/block-seat-reservation/internal/queue"
	"github.com/iliyamo/block-seat-reservation/internal/repository"
	"github.com/iliyamo/block-seat-reservation/internal/router"
	"github.com/iliyamo/block-seat-reservation/internal/seed"
	"github.com/iliyamo/block-seat-reservation/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.Setup(cfg.Log, "server")

	catalog, ledger, db, seedStore := openStore(cfg, log)
	if db != nil {
		defer db.Close()
	}
	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			log.WithError(err).Fatal("load seed file")
		}
		sum, err := seed.Apply(context.Background(), seedStore, f)
		if err != nil {
			log.WithError(err).Fatal("apply seed file")
		}
		log.WithFields(logrus.Fields{"venues": sum.Venues, "events": sum.Events}).Info("catalog seeded")
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.WithField("addr", cfg.Redis.Addr).Warn("redis unavailable; rate limiting and caches disabled")
	} else {
		defer rdb.Close()
	}

	var publisher service.EventPublisher = queue.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		p := queue.NewPublisher(cfg.RabbitMQ.URL, log)
		defer p.Close()
		publisher = p
	}

	manager := service.NewManager(
		catalog,
		ledger,
		publisher,
		service.NewAvailabilityCache(rdb, cfg.Availability.TTL, cfg.Availability.Prefix),
		clock.NewSystem(),
		log,
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover(), echomw.RequestID(), middleware.RequestLogger(log))

	deps := router.Deps{
		Config:   cfg,
		Redis:    rdb,
		Log:      log,
		Bookings: handler.NewBookingHandler(manager, log),
		Catalog:  handler.NewCatalogHandler(manager, log),
	}
	if db != nil {
		deps.DB = db
	}
	router.Register(e, deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.Store}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("server stopped")
}

// openStore returns the catalog and booking store selected by STORE_DRIVER.
// db is nil for the in-memory store.
func openStore(cfg config.Config, log logrus.FieldLogger) (service.CatalogSource, service.BookingLedger, *sql.DB, seed.Store) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store; bookings are lost on restart")
		mem := repository.NewMemoryStore()
		return mem, mem, nil, mem
	}
	db, err := database.Open(cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("connect to database")
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		log.WithError(err).Fatal("migrate database")
	}
	events := repository.NewEventRepo(db)
	return events, repository.NewBookingRepo(db), db, events
}
