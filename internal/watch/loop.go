// Package watch runs the continuous detection pipeline: scrape each
// configured branch, record new builds, catalog their assets, and fan out
// notifications.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/slice/havoc/internal/assets"
	"github.com/slice/havoc/internal/config"
	"github.com/slice/havoc/internal/db"
	"github.com/slice/havoc/internal/discord"
	"github.com/slice/havoc/internal/metrics"
	"github.com/slice/havoc/internal/scrape"
)

// Loop drives detection cycles at a fixed interval.
type Loop struct {
	store    *db.Store
	scraper  *scrape.Scraper
	webhooks *WebhookPublisher
	events   *EventPublisher
	recorder *metrics.Recorder
	interval time.Duration

	mu       sync.RWMutex
	byBranch map[discord.Branch][]config.Subscription
}

// NewLoop assembles a detection loop. events may be nil when no event bus is
// configured.
func NewLoop(store *db.Store, scraper *scrape.Scraper, webhooks *WebhookPublisher, events *EventPublisher, recorder *metrics.Recorder, interval time.Duration, subs []config.Subscription) *Loop {
	l := &Loop{
		store:    store,
		scraper:  scraper,
		webhooks: webhooks,
		events:   events,
		recorder: recorder,
		interval: interval,
	}
	l.UpdateSubscriptions(subs)
	return l
}

// UpdateSubscriptions swaps the fan-out table. The next cycle observes the
// new subscriptions.
func (l *Loop) UpdateSubscriptions(subs []config.Subscription) {
	byBranch := make(map[discord.Branch][]config.Subscription)
	for _, sub := range subs {
		for _, branch := range sub.Branches {
			byBranch[branch] = append(byBranch[branch], sub)
		}
	}

	l.mu.Lock()
	l.byBranch = byBranch
	l.mu.Unlock()
}

func (l *Loop) snapshot() map[discord.Branch][]config.Subscription {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byBranch
}

// Run executes detection cycles until the context is cancelled or a cycle
// fails. The first cycle starts immediately; later cycles are spaced by the
// configured interval, never overlapping.
func (l *Loop) Run(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	defer func() { _ = scheduler.Shutdown() }()

	failed := make(chan error, 1)

	_, err = scheduler.NewJob(
		gocron.DurationJob(l.interval),
		gocron.NewTask(func() {
			if err := l.runCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
				select {
				case failed <- err:
				default:
				}
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule detection job: %w", err)
	}

	slog.Info("scraping continuously", "interval", l.interval)
	scheduler.Start()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-failed:
		return err
	}
}

// runCycle runs one detection attempt for every configured branch. A failing
// branch does not stop the others; the failures are returned together.
func (l *Loop) runCycle(ctx context.Context) error {
	cycle := uuid.NewString()[:8]

	var errs []error
	for branch, subs := range l.snapshot() {
		logger := slog.With("branch", branch, "cycle", cycle)
		if err := l.detectBranch(ctx, logger, branch, subs); err != nil {
			l.recorder.ScrapeError(branch)
			errs = append(errs, fmt.Errorf("detect changes on %s: %w", branch, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	l.recorder.CycleCompleted()
	return nil
}

// detectBranch performs the scrape → staleness check → record → catalog →
// publish sequence for one branch.
func (l *Loop) detectBranch(ctx context.Context, logger *slog.Logger, branch discord.Branch, subs []config.Subscription) error {
	manifest, err := l.scraper.ScrapeManifest(ctx, branch)
	if err != nil {
		return err
	}

	last, ok, err := l.store.LastKnownHash(ctx, branch)
	if err != nil {
		return err
	}
	if ok && last == manifest.Hash {
		logger.Debug("branch is stale", "hash", manifest.Hash)
		return nil
	}

	cache := assets.NewCache(l.scraper.CacheFetcher())

	build, err := l.scraper.ScrapeBuild(ctx, manifest, cache)
	if err != nil {
		return err
	}

	logger.Info("detected new build", "number", build.Number, "hash", build.Manifest.Hash)

	catalogued, err := l.store.IsBuildCatalogued(ctx, build.Manifest.Hash)
	if err != nil {
		return err
	}

	if err := l.store.RecordDeploy(ctx, build, branch); err != nil {
		return err
	}
	l.recorder.DeployDetected(branch)

	if catalogued {
		logger.Info("skipping asset catalog, build already in database",
			"number", build.Number, "hash", build.Manifest.Hash)
	} else {
		chunks, err := l.scraper.ExtractAssetsFromChunkLoader(ctx, build.Manifest, cache)
		if err != nil {
			// Chunk loader scraping is best effort; a layout change
			// must not stop cataloging the surface assets.
			logger.Warn("chunk loader scan failed, cataloging without deep assets", "error", err)
			chunks = nil
		}
		if err := l.store.CatalogAssets(ctx, build, chunks); err != nil {
			return err
		}
	}

	if l.events != nil {
		if err := l.events.PublishDeploy(build, branch); err != nil {
			logger.Warn("deploy event publish failed", "error", err)
		}
	}

	for _, sub := range subs {
		if err := l.webhooks.PostBuild(ctx, build, sub); err != nil {
			logger.Warn("webhook delivery failed", "webhook", sub.WebhookURL, "error", err)
			l.recorder.WebhookPost(false)
			continue
		}
		l.recorder.WebhookPost(true)
	}

	return nil
}
