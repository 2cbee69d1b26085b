package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// Set at build time with: -ldflags "-X main.version=..."
var version = "dev"

// CLI is the root command definition.
type CLI struct {
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Scrape ScrapeCmd `cmd:"" help:"Scrape a target once and print what was found"`
	Watch  WatchCmd  `cmd:"" help:"Continuously watch branches for new builds"`
}

// AfterApply sets up logging once, before any subcommand runs.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("havoc"),
		kong.Description("Discord build change detector"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(ctx.Run())
}
