package finder_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/gotwoslash/pkg/finder"
)

func TestDefaultFinder_FindDocuments(t *testing.T) {
	fs := afero.NewMemMapFs()

	files := map[string]string{
		"docs/intro.md":                   "# Intro",
		"docs/guide/types.mdx":            "# Types",
		"docs/guide/notes.markdown":       "# Notes",
		"docs/code.ts":                    "const x = 1;",
		"docs/.hidden/secret.md":          "# Hidden",
		"docs/node_modules/pkg/README.md": "# Dep",
	}
	for name, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(filepath.FromSlash(name)), 0o755))
		require.NoError(t, afero.WriteFile(fs, filepath.FromSlash(name), []byte(content), 0o644))
	}

	tests := []struct {
		name     string
		root     string
		patterns []string
		want     []string
		wantErr  bool
	}{
		{
			name: "default patterns",
			root: "docs",
			want: []string{
				filepath.FromSlash("docs/guide/notes.markdown"),
				filepath.FromSlash("docs/guide/types.mdx"),
				filepath.FromSlash("docs/intro.md"),
			},
		},
		{
			name:     "only top level markdown",
			root:     "docs",
			patterns: []string{"*.md"},
			want:     []string{filepath.FromSlash("docs/intro.md")},
		},
		{
			name:     "nested directory pattern",
			root:     "docs",
			patterns: []string{"guide/**/*.mdx"},
			want:     []string{filepath.FromSlash("docs/guide/types.mdx")},
		},
		{
			name: "a file root is returned as is",
			root: filepath.FromSlash("docs/code.ts"),
			want: []string{filepath.FromSlash("docs/code.ts")},
		},
		{
			name:    "missing root",
			root:    "nope",
			wantErr: true,
		},
		{
			name:     "bad pattern",
			root:     "docs",
			patterns: []string{"[unclosed"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := finder.NewDefaultFinder(fs).FindDocuments(context.Background(), tt.root, tt.patterns)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
