package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Spok95/pharmacy-ledger/internal/config"
	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/domain/purchasing"
	"github.com/Spok95/pharmacy-ledger/internal/domain/sales"
	"github.com/Spok95/pharmacy-ledger/internal/infra/db"
	httpx "github.com/Spok95/pharmacy-ledger/internal/infra/http"
	"github.com/Spok95/pharmacy-ledger/internal/infra/logger"
	"github.com/Spok95/pharmacy-ledger/internal/infra/notify"
)

func main() {
	cfgPath := flag.String("config", "config/example.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := db.Migrate(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	clock := cfg.Clock()
	catalogSvc := catalog.NewService(catalog.NewRepo(pool), log)
	ledger := inventory.NewLedger(inventory.NewRepo(pool), log, inventory.WithClock(clock))
	purchasingSvc := purchasing.NewService(purchasing.NewRepo(pool), log, purchasing.WithClock(clock))
	salesSvc := sales.NewService(sales.NewRepo(pool), cfg.Merchant, log, sales.WithClock(clock))

	if err := cfg.Merchant.Validate(); err != nil {
		log.Warn("merchant config incomplete, sales cannot be finalized", "err", err)
	}

	if cfg.Alerts.Enabled {
		api, err := notify.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Error("telegram init failed", "err", err)
			return
		}
		n := notify.New(api, ledger, catalogSvc, notify.Config{
			ChatIDs:      cfg.AlertChats(),
			ExpiryWindow: cfg.Alerts.ExpiryWindowDays,
			Every:        cfg.Alerts.Interval,
		}, log)
		go func() {
			if err := n.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("stock alerts stopped", "err", err)
			}
		}()
		log.Info("stock alerts enabled", "bot", api.Self.UserName, "every", cfg.Alerts.Interval)
	}

	api := httpx.NewAPI(catalogSvc, ledger, purchasingSvc, salesSvc, log)
	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, api, log)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			stop()
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
