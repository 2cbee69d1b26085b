// Package assets keeps fetched asset contents in memory for the duration of
// one detection attempt, with an optional per-type preprocessing layer that
// is memoized separately from the raw bytes.
package assets

import (
	"context"
	"fmt"

	"github.com/slice/havoc/internal/discord"
)

// FetchFunc fetches the body served at a URL.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// Preprocessor transforms an asset's raw bytes, e.g. decompression.
type Preprocessor func(ctx context.Context, raw []byte) ([]byte, error)

// PreprocessError wraps a preprocessor failure for an asset.
type PreprocessError struct {
	Asset discord.Asset
	Err   error
}

func (e *PreprocessError) Error() string {
	return fmt.Sprintf("preprocess %s: %v", e.Asset.Filename(), e.Err)
}

func (e *PreprocessError) Unwrap() error {
	return e.Err
}

// Cache memoizes asset contents by asset name. A cache belongs to a single
// detection attempt and is not safe for concurrent use.
type Cache struct {
	fetch         FetchFunc
	raw           map[string][]byte
	preprocessors map[discord.AssetType]Preprocessor
	preprocessed  map[string][]byte
}

// NewCache creates an empty cache that fetches misses with fetch.
func NewCache(fetch FetchFunc) *Cache {
	return &Cache{
		fetch:         fetch,
		raw:           make(map[string][]byte),
		preprocessors: make(map[discord.AssetType]Preprocessor),
		preprocessed:  make(map[string][]byte),
	}
}

// SetPreprocessor registers a preprocessor for an asset type, replacing any
// previously registered one.
func (c *Cache) SetPreprocessor(t discord.AssetType, p Preprocessor) {
	c.preprocessors[t] = p
}

// RawContent returns the raw bytes of the asset, fetching and memoizing on
// first use. Preprocessors are not run.
func (c *Cache) RawContent(ctx context.Context, asset discord.Asset) ([]byte, error) {
	if content, ok := c.raw[asset.Name]; ok {
		return content, nil
	}

	content, err := c.fetch(ctx, asset.URL())
	if err != nil {
		return nil, err
	}
	c.raw[asset.Name] = content
	return content, nil
}

// PreprocessedContent returns the asset's bytes after the preprocessor for
// its type has run, memoized separately from the raw content. Without a
// registered preprocessor the raw bytes are returned as-is.
func (c *Cache) PreprocessedContent(ctx context.Context, asset discord.Asset) ([]byte, error) {
	if content, ok := c.preprocessed[asset.Name]; ok {
		return content, nil
	}

	raw, err := c.RawContent(ctx, asset)
	if err != nil {
		return nil, err
	}

	preprocessor, ok := c.preprocessors[asset.Type]
	if !ok {
		return raw, nil
	}

	content, err := preprocessor(ctx, raw)
	if err != nil {
		return nil, &PreprocessError{Asset: asset, Err: err}
	}
	c.preprocessed[asset.Name] = content
	return content, nil
}
