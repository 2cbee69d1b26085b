package watch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slice/havoc/internal/config"
	"github.com/slice/havoc/internal/discord"
)

func canaryBuild() discord.Build {
	return discord.Build{
		Number: 42,
		Manifest: discord.Manifest{
			Branch: discord.BranchCanary,
			Hash:   "h1",
			Assets: []discord.Asset{
				{Name: "loader00000000000000", Type: discord.AssetJs},
				{Name: "classes0000000000000", Type: discord.AssetJs},
				{Name: "vendor00000000000000", Type: discord.AssetJs},
				{Name: "entrypoint0000000000", Type: discord.AssetJs},
				{Name: "style000000000000000", Type: discord.AssetCss},
			},
		},
	}
}

type capturedRequest struct {
	contentType string
	userAgent   string
	body        []byte
}

func captureWebhook(t *testing.T, status int) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.contentType = r.Header.Get("content-type")
		captured.userAgent = r.Header.Get("user-agent")
		captured.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func TestPostBuildPayload(t *testing.T) {
	server, captured := captureWebhook(t, http.StatusNoContent)

	publisher := NewWebhookPublisher()
	publisher.now = func() time.Time {
		return time.Date(2024, time.March, 5, 21, 30, 45, 123_000_000, time.UTC)
	}

	err := publisher.PostBuild(context.Background(), canaryBuild(), config.Subscription{
		Branches:   []discord.Branch{discord.BranchCanary},
		WebhookURL: server.URL,
	})
	require.NoError(t, err)

	assert.Equal(t, "application/json", captured.contentType)
	assert.Equal(t, "havoc/0.0 (https://github.com/slice/havoc)", captured.userAgent)

	var payload struct {
		Username string `json:"username"`
		Embeds   []struct {
			Title       string `json:"title"`
			Color       uint32 `json:"color"`
			Description string `json:"description"`
			Fields      []struct {
				Name   string `json:"name"`
				Value  string `json:"value"`
				Inline bool   `json:"inline"`
			} `json:"fields"`
			Footer struct {
				Text string `json:"text"`
			} `json:"footer"`
			Timestamp string `json:"timestamp"`
		} `json:"embeds"`
	}
	require.NoError(t, json.Unmarshal(captured.body, &payload))

	assert.Equal(t, "havoc", payload.Username)
	require.Len(t, payload.Embeds, 1)
	embed := payload.Embeds[0]

	assert.Equal(t, "Canary 42", embed.Title)
	assert.Equal(t, uint32(0xf1c40f), embed.Color)
	assert.Equal(t, "Hash: `h1`", embed.Description)
	assert.Equal(t, "2024-03-05T21:30:45.123Z", embed.Timestamp)
	assert.Contains(t, embed.Footer.Text, "Pacific Time: ")

	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "Scripts", embed.Fields[0].Name)
	assert.Contains(t, embed.Fields[0].Value, "loader00000000000000.js")
	assert.Contains(t, embed.Fields[0].Value, "(chunk loader)",
		"exactly four scripts get legacy role labels")
	assert.Contains(t, embed.Fields[0].Value, "(entrypoint)")
	assert.Equal(t, "Styles", embed.Fields[1].Name)
	assert.Contains(t, embed.Fields[1].Value, "style000000000000000.css")
}

func TestPostBuildNon2xx(t *testing.T) {
	server, _ := captureWebhook(t, http.StatusTooManyRequests)

	publisher := NewWebhookPublisher()
	err := publisher.PostBuild(context.Background(), canaryBuild(), config.Subscription{
		WebhookURL: server.URL,
	})
	assert.Error(t, err)
}

func TestScriptsListingWithoutLegacyShape(t *testing.T) {
	build := canaryBuild()
	build.Manifest.Assets = append(build.Manifest.Assets,
		discord.Asset{Name: "extra000000000000000", Type: discord.AssetJs})

	listing := scriptsListing(build.Manifest.Assets)
	assert.NotContains(t, listing, "(chunk loader)",
		"five scripts mean no legacy labels")
	assert.Contains(t, listing, "extra000000000000000.js")
}
