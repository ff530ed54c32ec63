// Package assets resolves rhyme codes to the SVG artwork embedded into
// binder pages. Artwork is looked up in an externally authored location
// first (local directory or S3 prefix), then in the packaged fallback set;
// callers generate a placeholder when both miss.
package assets

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound reports that no artwork exists for a rhyme code.
var ErrNotFound = errors.New("asset not found")

// Asset is one resolved SVG. Dir is the directory the asset was read from,
// used to localize relative image references; it is empty for S3 and
// packaged assets.
type Asset struct {
	Data []byte
	Dir  string
}

// Source fetches artwork for a rhyme code.
type Source interface {
	Fetch(ctx context.Context, code string) (Asset, error)
}

// FromBase builds a source for the configured asset base path. Supports
// local directories and s3://bucket/prefix locations. An empty base returns
// nil: resolution then starts at the packaged fallback set.
func FromBase(ctx context.Context, base, encPassword string) (Source, error) {
	if base == "" {
		return nil, nil
	}
	if strings.HasPrefix(base, "s3://") {
		return newS3Source(ctx, base, encPassword)
	}
	return &Local{Dir: base}, nil
}

//go:embed fallback/*.svg
var fallbackFS embed.FS

// Packaged is the embedded fallback artwork set shipped with the binary.
type Packaged struct{}

func (Packaged) Fetch(_ context.Context, code string) (Asset, error) {
	b, err := fallbackFS.ReadFile("fallback/" + code + ".svg")
	if err != nil {
		return Asset{}, fmt.Errorf("packaged asset %s: %w", code, ErrNotFound)
	}
	return Asset{Data: b}, nil
}
