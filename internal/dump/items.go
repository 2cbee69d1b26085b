package dump

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/slice/havoc/internal/assets"
	"github.com/slice/havoc/internal/discord"
	"github.com/slice/havoc/internal/jsparse"
)

// Item selects what to dump from an artifact.
type Item int

const (
	// CSSClasses dumps the module → class mapping tables.
	CSSClasses Item = iota

	// WebpackModules dumps the entrypoint's module sources keyed by ID.
	WebpackModules
)

// ParseItem resolves a dumper name as given on the command line.
func ParseItem(s string) (Item, error) {
	switch s {
	case "classes":
		return CSSClasses, nil
	case "modules":
		return WebpackModules, nil
	default:
		return 0, fmt.Errorf("unknown dumper %q", s)
	}
}

// Dump walks the requested data out of the artifact's scripts, fetching
// through cache, and returns it ready for serialization.
func Dump(ctx context.Context, item Item, artifact Artifact, cache *assets.Cache) (Result, error) {
	switch item {
	case CSSClasses:
		return dumpClasses(ctx, artifact, cache)
	case WebpackModules:
		return dumpModules(ctx, artifact, cache)
	default:
		return Result{}, fmt.Errorf("unknown dump item %d", item)
	}
}

func dumpClasses(ctx context.Context, artifact Artifact, cache *assets.Cache) (Result, error) {
	script, _, err := parseRootScript(ctx, artifact, cache, discord.RootClasses)
	if err != nil {
		return Result{}, err
	}
	defer script.Close()

	mapping, err := jsparse.WalkClassesChunk(script)
	if err != nil {
		return Result{}, fmt.Errorf("walk classes chunk: %w", err)
	}

	return FromSerializable(mapping, "classes"), nil
}

func dumpModules(ctx context.Context, artifact Artifact, cache *assets.Cache) (Result, error) {
	script, source, err := parseRootScript(ctx, artifact, cache, discord.RootEntrypoint)
	if err != nil {
		return Result{}, err
	}
	defer script.Close()

	chunk, err := jsparse.WalkWebpackChunk(script)
	if err != nil {
		return Result{}, fmt.Errorf("walk webpack chunk: %w", err)
	}

	modules := make(map[jsparse.ModuleID]string, len(chunk.Modules))
	for id, module := range chunk.Modules {
		modules[id] = source[module.Lo:module.Hi]
	}

	return FromSerializable(modules, "entrypoint_modules"), nil
}

func parseRootScript(ctx context.Context, artifact Artifact, cache *assets.Cache, role discord.RootScript) (*jsparse.Script, string, error) {
	asset, ok := discord.FindRootScript(artifact.Assets(), role)
	if !ok {
		return nil, "", fmt.Errorf("failed to locate %s root script", role)
	}

	content, err := cache.PreprocessedContent(ctx, asset)
	if err != nil {
		return nil, "", err
	}
	if !utf8.Valid(content) {
		return nil, "", fmt.Errorf("%s script is not valid utf-8", role)
	}

	source := string(content)
	script, err := jsparse.Parse(ctx, source)
	if err != nil {
		return nil, "", fmt.Errorf("parse %s script: %w", role, err)
	}
	return script, source, nil
}
