package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slice/havoc/internal/assets"
	"github.com/slice/havoc/internal/discord"
)

// testScraper points a scraper at httptest servers for the branch page and
// the asset host.
func testScraper(t *testing.T, page http.HandlerFunc, assetBodies map[string]string) *Scraper {
	t.Helper()

	branchServer := httptest.NewServer(page)
	t.Cleanup(branchServer.Close)

	assetServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := assetBodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(assetServer.Close)

	return New(
		WithBaseURL(func(discord.Branch) string { return branchServer.URL }),
		WithAssetBaseURL(assetServer.URL+"/assets"),
	)
}

func TestScrapeManifest(t *testing.T) {
	scraper := testScraper(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/@me", r.URL.Path)
		w.Header().Set("x-build-id", "h1")
		_, _ = w.Write([]byte(fixtureHTML))
	}, nil)

	manifest, err := scraper.ScrapeManifest(context.Background(), discord.BranchCanary)
	require.NoError(t, err)
	assert.Equal(t, discord.BranchCanary, manifest.Branch)
	assert.Equal(t, "h1", manifest.Hash)
	assert.Len(t, manifest.Assets, 5)
}

func TestScrapeManifestMissingBuildHeader(t *testing.T) {
	scraper := testScraper(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(fixtureHTML))
	}, nil)

	_, err := scraper.ScrapeManifest(context.Background(), discord.BranchCanary)
	assert.ErrorIs(t, err, ErrMissingNetworkBuildInfo)
}

func TestScrapeManifestBrokenHTML(t *testing.T) {
	// One script tag and no stylesheets at all.
	scraper := testScraper(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-build-id", "h1")
		_, _ = w.Write([]byte(`<script src="/assets/aaaaaaaaaaaaaaaaaaaa.js"></script>`))
	}, nil)

	_, err := scraper.ScrapeManifest(context.Background(), discord.BranchCanary)
	var pageErr *BranchPageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, "couldn't find at least one stylesheet", pageErr.Reason)
}

func TestScrapeManifestNoAssets(t *testing.T) {
	scraper := testScraper(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-build-id", "h1")
		_, _ = w.Write([]byte("<html><body></body></html>"))
	}, nil)

	_, err := scraper.ScrapeManifest(context.Background(), discord.BranchCanary)
	var pageErr *BranchPageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, "no assets were found whatsoever", pageErr.Reason)
}

func TestScrapeBuild(t *testing.T) {
	scraper := testScraper(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-build-id", "h1")
		_, _ = w.Write([]byte(fixtureHTML))
	}, map[string]string{
		// The entrypoint is the penultimate script, ccc... here.
		"/assets/cccccccccccccccccccc.js": `whatever;"Build Number: 42, Version Hash: deadbeef";more`,
	})

	manifest, err := scraper.ScrapeManifest(context.Background(), discord.BranchCanary)
	require.NoError(t, err)

	cache := assets.NewCache(scraper.CacheFetcher())
	build, err := scraper.ScrapeBuild(context.Background(), manifest, cache)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), build.Number)
	assert.Equal(t, "h1", build.Manifest.Hash)
}

func TestScrapeBuildMissingInfo(t *testing.T) {
	scraper := testScraper(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-build-id", "h1")
		_, _ = w.Write([]byte(fixtureHTML))
	}, map[string]string{
		"/assets/cccccccccccccccccccc.js": "no build info in here",
	})

	manifest, err := scraper.ScrapeManifest(context.Background(), discord.BranchCanary)
	require.NoError(t, err)

	cache := assets.NewCache(scraper.CacheFetcher())
	_, err = scraper.ScrapeBuild(context.Background(), manifest, cache)
	assert.ErrorIs(t, err, ErrMissingStaticBuildInfo)
}

func TestMatchStaticBuildInfoLegacy(t *testing.T) {
	number, err := MatchStaticBuildInfo(`junk Build Number: 42, Version Hash: deadbeef junk`)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), number)
}

func TestMatchStaticBuildInfoBundlerSplit(t *testing.T) {
	js := `"Build Number: ").concat("99",", Version Hash: ").concat("abc123")`
	number, err := MatchStaticBuildInfo(js)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), number)
}

func TestMatchStaticBuildInfoPrefersSplitForm(t *testing.T) {
	js := `"Build Number: ").concat("99",", Version Hash: ").concat("abc123")` +
		` Build Number: 42, Version Hash: deadbeef`
	number, err := MatchStaticBuildInfo(js)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), number)
}

func TestMatchStaticBuildInfoMissing(t *testing.T) {
	_, err := MatchStaticBuildInfo("nothing to see")
	assert.ErrorIs(t, err, ErrMissingStaticBuildInfo)
}
