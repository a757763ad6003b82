package source

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

func init() {
	Register("dir", expandDir)
}

var defaultGlobs = []string{"*.log", "*.txt", "*.json", "*.gz"}

// expandDir walks root in lexical order and opens every file matching one
// of the configured globs as its own origin. Unreadable subtrees are
// skipped with a warning; only a walk failure on root itself is fatal.
func expandDir(root string, opts Options) ([]Source, error) {
	globs := opts.DirGlobs
	if len(globs) == 0 {
		globs = defaultGlobs
	}

	var sources []Source
	taken := map[string]bool{}
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			opts.Log.Warn().Str("path", path).Err(err).Msg("skipping unreadable entry")
			return nil
		}
		if d.IsDir() || !matchesAny(globs, d.Name()) {
			return nil
		}

		f := NewFile(path, opts.Service, opts.Log)
		// Same stem in two subdirectories: fall back to the relative path
		// so origin ids stay unique within the run.
		if taken[f.origin] {
			f.origin = relOrigin(root, path)
			f.service = serviceOr(opts.Service, f.origin)
		}
		taken[f.origin] = true
		sources = append(sources, f)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("source: %w", walkErr)
	}
	return sources, nil
}

func matchesAny(globs []string, name string) bool {
	for _, g := range globs {
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
	}
	return false
}

func relOrigin(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		return rel[:i] + "/" + originFromPath(path)
	}
	return originFromPath(path)
}
