package scrape

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/slice/havoc/internal/assets"
	"github.com/slice/havoc/internal/discord"
)

// chunkLoaderLandmark separates the script chunk table from the rest of the
// chunk loader. Everything about this file's layout is a moving target.
const chunkLoaderLandmark = `+".js"`

var chunkEntryRe = regexp.MustCompile(`(\d+):"([0-9a-f]{20})"`)

// ChunkAsset is a lazily loaded script chunk referenced by the chunk loader.
type ChunkAsset struct {
	ChunkID uint32
	Asset   discord.Asset
}

// ScanChunkLoader scans chunk loader script text for script chunk entries.
// The text is split once at the landmark; the prefix holds the script table.
// The stylesheet side of the table is ignored, as it contains spurious
// hashes. A missing landmark returns ErrMissingStaticBuildInfo.
//
// This is best-effort by contract: callers should treat a failure as "no
// deep assets this build", not as a fatal condition.
func ScanChunkLoader(js string) ([]ChunkAsset, error) {
	prefix, _, found := strings.Cut(js, chunkLoaderLandmark)
	if !found {
		return nil, ErrMissingStaticBuildInfo
	}

	var chunks []ChunkAsset
	for _, m := range chunkEntryRe.FindAllStringSubmatch(prefix, -1) {
		id, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			continue
		}
		chunks = append(chunks, ChunkAsset{
			ChunkID: uint32(id),
			Asset:   discord.Asset{Name: m[2], Type: discord.AssetJs},
		})
	}

	return chunks, nil
}

// ExtractAssetsFromChunkLoader locates the manifest's chunk loader script,
// fetches it through the cache, and scans it for script chunks.
func (s *Scraper) ExtractAssetsFromChunkLoader(ctx context.Context, manifest discord.Manifest, cache *assets.Cache) ([]ChunkAsset, error) {
	loader, ok := discord.FindRootScript(manifest.Assets, discord.RootChunkLoader)
	if !ok {
		return nil, &BranchPageError{Reason: "couldn't locate chunk loader root script"}
	}

	content, err := cache.RawContent(ctx, loader)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(content) {
		return nil, ErrDecoding
	}

	return ScanChunkLoader(string(content))
}
