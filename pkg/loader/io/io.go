// Package io reads documents from a local directory.
package io

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/graphweave/graphrag/pkg/loader"
)

// DirSource lists every file below dir whose name ends in suffix.
type DirSource struct {
	dir    string
	suffix string
}

var _ loader.Source = (*DirSource)(nil)

// NewDirSource returns a Source over dir. An empty suffix selects
// loader.DefaultSuffix. It fails with loader.ErrSourceMissing when dir does
// not exist or is not a directory.
func NewDirSource(dir, suffix string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", loader.ErrSourceMissing, dir)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", loader.ErrSourceMissing, dir)
	}
	if suffix == "" {
		suffix = loader.DefaultSuffix
	}
	return &DirSource{dir: dir, suffix: suffix}, nil
}

// List returns matching file paths in lexical order.
func (s *DirSource) List(ctx context.Context) ([]string, error) {
	paths := make([]string, 0)
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !loader.MatchesSuffix(d.Name(), s.suffix) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}
	slices.Sort(paths)
	return paths, nil
}

func (s *DirSource) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}
