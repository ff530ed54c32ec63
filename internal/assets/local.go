package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Local reads artwork from a directory of <code>.svg files.
type Local struct {
	Dir string
}

func (l *Local) Fetch(_ context.Context, code string) (Asset, error) {
	p := filepath.Join(l.Dir, code+".svg")
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return Asset{}, fmt.Errorf("local asset %s: %w", code, ErrNotFound)
		}
		return Asset{}, fmt.Errorf("read asset %s: %w", p, err)
	}
	return Asset{Data: b, Dir: l.Dir}, nil
}
