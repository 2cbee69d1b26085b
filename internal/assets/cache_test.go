package assets

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slice/havoc/internal/discord"
)

func countingFetch(calls *int, content []byte) FetchFunc {
	return func(_ context.Context, _ string) ([]byte, error) {
		*calls++
		return content, nil
	}
}

func TestRawContentMemoizes(t *testing.T) {
	calls := 0
	cache := NewCache(countingFetch(&calls, []byte("body")))
	asset := discord.Asset{Name: "abc", Type: discord.AssetJs}

	first, err := cache.RawContent(context.Background(), asset)
	require.NoError(t, err)
	second, err := cache.RawContent(context.Background(), asset)
	require.NoError(t, err)

	assert.Equal(t, []byte("body"), first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "second read must come from the cache")
}

func TestPreprocessedContentWithoutPreprocessor(t *testing.T) {
	calls := 0
	cache := NewCache(countingFetch(&calls, []byte("raw")))
	asset := discord.Asset{Name: "abc", Type: discord.AssetJs}

	content, err := cache.PreprocessedContent(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), content, "no preprocessor means raw bytes as-is")
	assert.Equal(t, 1, calls)
}

func TestPreprocessedContentMemoizesSeparately(t *testing.T) {
	fetches := 0
	preprocesses := 0
	cache := NewCache(countingFetch(&fetches, []byte("raw")))
	cache.SetPreprocessor(discord.AssetJs, func(_ context.Context, raw []byte) ([]byte, error) {
		preprocesses++
		return append([]byte("pre:"), raw...), nil
	})
	asset := discord.Asset{Name: "abc", Type: discord.AssetJs}

	content, err := cache.PreprocessedContent(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, []byte("pre:raw"), content)

	again, err := cache.PreprocessedContent(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, content, again)

	raw, err := cache.RawContent(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), raw, "raw cache must stay untouched by preprocessing")

	assert.Equal(t, 1, fetches)
	assert.Equal(t, 1, preprocesses)
}

func TestPreprocessorOnlyRunsForItsType(t *testing.T) {
	cache := NewCache(countingFetch(new(int), []byte("raw")))
	cache.SetPreprocessor(discord.AssetCss, func(_ context.Context, _ []byte) ([]byte, error) {
		t.Fatal("css preprocessor must not run for a js asset")
		return nil, nil
	})

	content, err := cache.PreprocessedContent(context.Background(), discord.Asset{Name: "abc", Type: discord.AssetJs})
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), content)
}

func TestPreprocessErrorWraps(t *testing.T) {
	boom := errors.New("boom")
	cache := NewCache(countingFetch(new(int), []byte("raw")))
	cache.SetPreprocessor(discord.AssetJs, func(_ context.Context, _ []byte) ([]byte, error) {
		return nil, boom
	})

	_, err := cache.PreprocessedContent(context.Background(), discord.Asset{Name: "abc", Type: discord.AssetJs})
	var perr *PreprocessError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "abc.js", perr.Asset.Filename())
	assert.ErrorIs(t, err, boom)
}

func TestGzipPreprocessor(t *testing.T) {
	var compressed bytes.Buffer
	w := gzip.NewWriter(&compressed)
	_, err := w.Write([]byte("hello chunks"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	out, err := Gzip()(context.Background(), compressed.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello chunks"), out)

	plain, err := Gzip()(context.Background(), []byte("not gzip"))
	require.NoError(t, err)
	assert.Equal(t, []byte("not gzip"), plain, "non-gzip content passes through")
}
