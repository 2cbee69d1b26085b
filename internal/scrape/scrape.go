// Package scrape turns Discord's public branch pages into manifests and
// builds: it fetches the entry HTML, extracts the referenced assets, and
// matches build information out of the entrypoint script.
package scrape

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/slice/havoc/internal/assets"
	"github.com/slice/havoc/internal/discord"
)

// buildIDHeader carries the server-reported build hash on branch pages.
const buildIDHeader = "x-build-id"

var (
	buildInfoRe = regexp.MustCompile(`Build Number: (\d+), Version Hash: ([0-9a-f]+)`)

	// The modern bundler splits the literal across concat calls.
	buildInfoSplitRe = regexp.MustCompile(`Build Number: "\)\.concat\("(\d+)",", Version Hash: "\)\.concat\("([0-9a-f]+)"\)`)
)

// Scraper fetches branch pages and assets. The zero value is not usable; use
// New.
type Scraper struct {
	client    *http.Client
	base      func(discord.Branch) string
	assetBase string
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithBaseURL overrides the branch base URL lookup. Intended for tests.
func WithBaseURL(base func(discord.Branch) string) Option {
	return func(s *Scraper) { s.base = base }
}

// WithAssetBaseURL overrides the asset host. Intended for tests.
func WithAssetBaseURL(base string) Option {
	return func(s *Scraper) { s.assetBase = base }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Scraper) { s.client = client }
}

// New creates a Scraper with a 10-second request timeout.
func New(opts ...Option) *Scraper {
	s := &Scraper{
		client:    newHTTPClient(),
		base:      discord.Branch.Base,
		assetBase: discord.AssetBaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CacheFetcher adapts this scraper into an assets.FetchFunc that resolves
// asset URLs against the scraper's asset host.
func (s *Scraper) CacheFetcher() assets.FetchFunc {
	return func(ctx context.Context, url string) ([]byte, error) {
		_, body, err := s.get(ctx, s.rebase(url))
		return body, err
	}
}

// rebase maps canonical asset URLs onto the scraper's asset host. When the
// host is the canonical one this is the identity.
func (s *Scraper) rebase(url string) string {
	if s.assetBase == discord.AssetBaseURL {
		return url
	}
	if len(url) > len(discord.AssetBaseURL) && url[:len(discord.AssetBaseURL)] == discord.AssetBaseURL {
		return s.assetBase + url[len(discord.AssetBaseURL):]
	}
	return url
}

// ScrapeManifest fetches the branch's application page and assembles a
// manifest from the assets referenced by it and the build hash reported in
// the response headers.
func (s *Scraper) ScrapeManifest(ctx context.Context, branch discord.Branch) (discord.Manifest, error) {
	headers, body, err := s.get(ctx, s.base(branch)+"/channels/@me")
	if err != nil {
		return discord.Manifest{}, err
	}

	if !utf8.Valid(body) {
		return discord.Manifest{}, ErrDecoding
	}

	found := ExtractAssetsFromTags(string(body))

	if len(found) == 0 {
		return discord.Manifest{}, &BranchPageError{Reason: "no assets were found whatsoever"}
	}
	if len(discord.FilterByType(found, discord.AssetJs)) < 1 {
		return discord.Manifest{}, &BranchPageError{Reason: "couldn't find at least one script"}
	}
	if len(discord.FilterByType(found, discord.AssetCss)) < 1 {
		return discord.Manifest{}, &BranchPageError{Reason: "couldn't find at least one stylesheet"}
	}

	hash := headers.Get(buildIDHeader)
	if hash == "" {
		return discord.Manifest{}, ErrMissingNetworkBuildInfo
	}

	return discord.Manifest{Branch: branch, Hash: hash, Assets: found}, nil
}

// ScrapeBuild extracts the build number out of the manifest's entrypoint
// script. The build hash is the one already present on the manifest.
func (s *Scraper) ScrapeBuild(ctx context.Context, manifest discord.Manifest, cache *assets.Cache) (discord.Build, error) {
	entrypoint, ok := discord.FindRootScript(manifest.Assets, discord.RootEntrypoint)
	if !ok {
		return discord.Build{}, &BranchPageError{Reason: "couldn't locate entrypoint root script"}
	}

	content, err := cache.RawContent(ctx, entrypoint)
	if err != nil {
		return discord.Build{}, err
	}
	if !utf8.Valid(content) {
		return discord.Build{}, ErrDecoding
	}

	number, err := MatchStaticBuildInfo(string(content))
	if err != nil {
		return discord.Build{}, err
	}

	return discord.Build{Manifest: manifest, Number: number}, nil
}

// MatchStaticBuildInfo extracts the build number from the entrypoint
// script's text, trying the bundler-split pattern before the legacy one.
func MatchStaticBuildInfo(js string) (uint32, error) {
	m := buildInfoSplitRe.FindStringSubmatch(js)
	if m == nil {
		m = buildInfoRe.FindStringSubmatch(js)
	}
	if m == nil {
		return 0, ErrMissingStaticBuildInfo
	}
	number, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, ErrMissingStaticBuildInfo
	}
	return uint32(number), nil
}
