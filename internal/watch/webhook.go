package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slice/havoc/internal/config"
	"github.com/slice/havoc/internal/discord"
)

const (
	webhookUsername  = "havoc"
	webhookUserAgent = "havoc/0.0 (https://github.com/slice/havoc)"
)

// WebhookPublisher serializes per-build messages and POSTs them to
// subscriber webhooks.
type WebhookPublisher struct {
	client  *http.Client
	now     func() time.Time
	pacific *time.Location
}

// NewWebhookPublisher creates a publisher with a 10-second POST timeout.
func NewWebhookPublisher() *WebhookPublisher {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		// LoadLocation reads the system's zoneinfo database; falling
		// back to UTC keeps the footer usable when it is missing.
		loc = time.UTC
	}
	return &WebhookPublisher{
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
		pacific: loc,
	}
}

// PostBuild delivers the build notification to the subscription's webhook.
// A non-2xx response is logged and reported as an error, but callers treat
// delivery failures as non-fatal for the cycle.
func (p *WebhookPublisher) PostBuild(ctx context.Context, build discord.Build, sub config.Subscription) error {
	payload, err := json.Marshal(p.buildPayload(build, p.now()))
	if err != nil {
		return fmt.Errorf("serialize webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("user-agent", webhookUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	slog.Info("webhook response",
		"status", resp.StatusCode, "body", string(body), "build", build.Number)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// buildPayload assembles the webhook JSON for a build at a fixed time.
func (p *WebhookPublisher) buildPayload(build discord.Build, now time.Time) map[string]any {
	branch := build.Manifest.Branch

	embed := map[string]any{
		"title":       fmt.Sprintf("%s %d", branch.Display(), build.Number),
		"color":       branch.Color(),
		"description": fmt.Sprintf("Hash: `%s`", build.Manifest.Hash),
		"fields": []map[string]any{
			{"name": "Scripts", "value": scriptsListing(build.Manifest.Assets), "inline": false},
			{"name": "Styles", "value": stylesListing(build.Manifest.Assets), "inline": false},
		},
		"footer": map[string]any{
			"text": "Pacific Time: " + now.In(p.pacific).Format("Jan 2, 15:04 (Mon)"),
		},
		"timestamp": now.UTC().Format("2006-01-02T15:04:05.000Z"),
	}

	return map[string]any{
		"username": webhookUsername,
		"embeds":   []map[string]any{embed},
	}
}

func formatAssetLink(a discord.Asset) string {
	return fmt.Sprintf("[`%s`](%s)", a.Filename(), a.URL())
}

// scriptsListing renders the surface scripts as markdown links, labeled with
// the legacy role ordering when exactly four scripts are present.
func scriptsListing(assets []discord.Asset) string {
	scripts := discord.FilterByType(assets, discord.AssetJs)

	lines := make([]string, 0, len(scripts))
	if len(scripts) == 4 {
		ordering := discord.LegacyOrdering()
		for i, script := range scripts {
			lines = append(lines, fmt.Sprintf("%s (%s)", formatAssetLink(script), ordering[i]))
		}
	} else {
		for _, script := range scripts {
			lines = append(lines, formatAssetLink(script))
		}
	}
	return strings.Join(lines, "\n")
}

func stylesListing(assets []discord.Asset) string {
	styles := discord.FilterByType(assets, discord.AssetCss)
	lines := make([]string, 0, len(styles))
	for _, style := range styles {
		lines = append(lines, formatAssetLink(style))
	}
	return strings.Join(lines, "\n")
}
