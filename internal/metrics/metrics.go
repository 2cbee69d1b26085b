// Package metrics exposes the watcher's prometheus instrumentation.
package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/slice/havoc/internal/discord"
)

// Recorder owns the watcher's metric families.
type Recorder struct {
	registry *prom.Registry

	cyclesTotal     prom.Counter
	deploysDetected *prom.CounterVec
	scrapeErrors    *prom.CounterVec
	webhookPosts    *prom.CounterVec
}

// NewRecorder constructs and registers the metric families on reg; a nil reg
// gets a fresh registry.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	r := &Recorder{
		registry: reg,
		cyclesTotal: prom.NewCounter(prom.CounterOpts{
			Namespace: "havoc",
			Name:      "detection_cycles_total",
			Help:      "Completed detection cycles",
		}),
		deploysDetected: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "havoc",
			Name:      "deploys_detected_total",
			Help:      "New build deploys detected, by branch",
		}, []string{"branch"}),
		scrapeErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "havoc",
			Name:      "scrape_errors_total",
			Help:      "Detection attempts that ended in an error, by branch",
		}, []string{"branch"}),
		webhookPosts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "havoc",
			Name:      "webhook_posts_total",
			Help:      "Webhook deliveries, by outcome",
		}, []string{"outcome"}),
	}

	reg.MustRegister(r.cyclesTotal, r.deploysDetected, r.scrapeErrors, r.webhookPosts)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}

// Registry returns the registry the recorder's families live on.
func (r *Recorder) Registry() *prom.Registry {
	return r.registry
}

// CycleCompleted counts a finished detection cycle.
func (r *Recorder) CycleCompleted() {
	r.cyclesTotal.Inc()
}

// DeployDetected counts a newly detected deploy on a branch.
func (r *Recorder) DeployDetected(branch discord.Branch) {
	r.deploysDetected.WithLabelValues(string(branch)).Inc()
}

// ScrapeError counts a failed detection attempt on a branch.
func (r *Recorder) ScrapeError(branch discord.Branch) {
	r.scrapeErrors.WithLabelValues(string(branch)).Inc()
}

// WebhookPost counts a webhook delivery by outcome.
func (r *Recorder) WebhookPost(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.webhookPosts.WithLabelValues(outcome).Inc()
}
