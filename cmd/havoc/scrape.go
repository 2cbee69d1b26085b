package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/slice/havoc/internal/assets"
	"github.com/slice/havoc/internal/discord"
	"github.com/slice/havoc/internal/dump"
	"github.com/slice/havoc/internal/scrape"
)

// ScrapeCmd scrapes a target once, prints a build summary, and optionally
// invokes dumpers on it.
type ScrapeCmd struct {
	Dump []string `short:"d" help:"Dumpers to invoke on the target (\"classes\", \"modules\")"`
	Deep bool     `help:"Also look for assets contained within other assets (script chunks)"`

	Target string `arg:"" help:"What to scrape, using target syntax (e.g. \"fe:canary\")"`
}

// parseTarget resolves target syntax of the form "fe:<branch>".
func parseTarget(s string) (discord.Branch, error) {
	source, variant, found := strings.Cut(s, ":")
	if !found {
		return "", fmt.Errorf("invalid target %q: missing colon", s)
	}
	if source != "fe" {
		return "", fmt.Errorf("invalid target %q: unknown source %q", s, source)
	}
	branch, err := discord.ParseBranch(variant)
	if err != nil {
		return "", err
	}
	if !branch.HasFrontend() {
		return "", fmt.Errorf("branch %s has no frontend", branch)
	}
	return branch, nil
}

func (c *ScrapeCmd) Run() error {
	branch, err := parseTarget(c.Target)
	if err != nil {
		return err
	}

	items := make([]dump.Item, 0, len(c.Dump))
	for _, name := range c.Dump {
		item, err := dump.ParseItem(name)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	ctx := context.Background()
	scraper := scrape.New()

	manifest, err := scraper.ScrapeManifest(ctx, branch)
	if err != nil {
		return fmt.Errorf("failed to scrape frontend manifest: %w", err)
	}

	cache := assets.NewCache(scraper.CacheFetcher())
	cache.SetPreprocessor(discord.AssetJs, assets.Gzip())

	build, err := scraper.ScrapeBuild(ctx, manifest, cache)
	if err != nil {
		return fmt.Errorf("failed to scrape frontend build: %w", err)
	}

	printBuild(build)

	if c.Deep {
		chunks, err := scraper.ExtractAssetsFromChunkLoader(ctx, build.Manifest, cache)
		if err != nil {
			return fmt.Errorf("failed to scan chunk loader: %w", err)
		}
		fmt.Printf("\nScript chunks (%d):\n", len(chunks))
		for _, chunk := range chunks {
			fmt.Printf("\t%d: %s\n", chunk.ChunkID, chunk.Asset.URL())
		}
	}

	artifact := dump.BuildArtifact(build)
	for _, item := range items {
		result, err := dump.Dump(ctx, item, artifact, cache)
		if err != nil {
			return fmt.Errorf("failed to dump: %w", err)
		}
		filename := artifact.Prefix() + "_" + result.Filename()
		if err := result.Write(filename); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", filename)
	}

	return nil
}

func printBuild(build discord.Build) {
	fmt.Printf("%s\n\n", build)

	scripts := discord.FilterByType(build.Manifest.Assets, discord.AssetJs)
	fmt.Println("Scripts:")
	if len(scripts) == 4 {
		ordering := discord.LegacyOrdering()
		for i, script := range scripts {
			fmt.Printf("\t%s (%s)\n", script.URL(), ordering[i])
		}
	} else {
		for _, script := range scripts {
			fmt.Printf("\t%s\n", script.URL())
		}
	}

	fmt.Println("Styles:")
	for _, style := range discord.FilterByType(build.Manifest.Assets, discord.AssetCss) {
		fmt.Printf("\t%s\n", style.URL())
	}
}
