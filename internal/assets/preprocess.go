package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Gzip returns a preprocessor that transparently decompresses gzip bodies.
// Content that does not carry the gzip magic is passed through untouched, so
// the preprocessor is safe to register even when the CDN serves some assets
// uncompressed.
func Gzip() Preprocessor {
	return func(_ context.Context, raw []byte) ([]byte, error) {
		if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
			return raw, nil
		}
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("decompress: %w", err)
		}
		return out, nil
	}
}
