package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/slice/havoc/internal/api"
	"github.com/slice/havoc/internal/config"
	"github.com/slice/havoc/internal/db"
	"github.com/slice/havoc/internal/metrics"
	"github.com/slice/havoc/internal/scrape"
	"github.com/slice/havoc/internal/watch"
)

// WatchCmd runs the supervised detection loop and the status HTTP API.
type WatchCmd struct {
	Config string `arg:"" help:"Path to the configuration file" type:"existingfile"`
}

func (c *WatchCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(cfg.DatabaseURL, int(cfg.MaxConnections))
	if err != nil {
		return err
	}
	defer store.Close()

	recorder := metrics.NewRecorder(nil)
	scraper := scrape.New()
	webhooks := watch.NewWebhookPublisher()

	var events *watch.EventPublisher
	if cfg.NATS != nil {
		events, err = watch.NewEventPublisher(cfg.NATS)
		if err != nil {
			return err
		}
		defer events.Close()
	}

	loop := watch.NewLoop(store, scraper, webhooks, events, recorder, cfg.Interval(), cfg.Subscriptions)

	watcher, err := config.NewWatcher(c.Config, func(next *config.Config) {
		loop.UpdateSubscriptions(next.Subscriptions)
	})
	if err != nil {
		return err
	}
	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("config watcher stopped", "error", err)
		}
	}()

	supervisor := watch.NewSupervisor(loop.Run)
	go func() {
		if err := supervisor.Supervise(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("supervisor exited", "error", err)
		}
	}()

	if cfg.HTTPAPIServerBindAddress == "" {
		<-ctx.Done()
		return nil
	}

	server := api.New(store, recorder.Registry())
	if err := server.ListenAndServe(ctx, cfg.HTTPAPIServerBindAddress); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
