package finder

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// DefaultPatterns match every markdown flavor the pipeline renders.
var DefaultPatterns = []string{"**/*.md", "**/*.mdx", "**/*.markdown"}

// DocumentFinder is responsible for finding markdown documents under a root
type DocumentFinder interface {
	// FindDocuments returns the files under root whose slash separated path relative
	// to root matches any of patterns
	FindDocuments(ctx context.Context, root string, patterns []string) ([]string, error)
}

// DefaultFinder walks an afero filesystem
type DefaultFinder struct {
	fs afero.Fs
}

var _ DocumentFinder = (*DefaultFinder)(nil)

// NewDefaultFinder creates a finder over fs; nil means the OS filesystem
func NewDefaultFinder(fs afero.Fs) *DefaultFinder {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &DefaultFinder{fs: fs}
}

// FindDocuments implements DocumentFinder. A root that is itself a file is returned
// as is. Hidden directories and node_modules are never entered.
func (f *DefaultFinder) FindDocuments(ctx context.Context, root string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Errorf("invalid pattern %q", pattern)
		}
	}

	info, err := f.fs.Stat(root)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var found []string
	err = afero.Walk(f.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if info.IsDir() {
			name := info.Name()
			if path != root && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		for _, pattern := range patterns {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				found = append(found, path)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking %s: %w", root, err)
	}

	zerolog.Ctx(ctx).Debug().Str("root", root).Int("documents", len(found)).Msg("found documents")

	return found, nil
}
