package browse

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/pkg/errors"

	"github.com/Brownie44l1/skinclass/internal/imageproc"
)

// Expand resolves each pattern to image paths. A pattern may name a file, a
// directory (its images, not recursive) or a glob, where ** crosses directories.
// Files named directly are kept even without an image extension so the caller
// sees their decode error, and so are literal paths that do not exist. Pattern order is kept, matches are sorted within a
// pattern and duplicates are dropped.
func Expand(patterns []string) ([]string, error) {
	var out []string
	seen := map[string]struct{}{}
	add := func(path string) {
		path = filepath.Clean(path)
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	for _, pattern := range patterns {
		info, err := os.Stat(pattern)
		switch {
		case err == nil && info.IsDir():
			matches, err := imagesIn(pattern)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				add(m)
			}
		case err == nil, !hasMeta(pattern):
			// a missing literal path is kept so the caller reports it per file
			add(pattern)
		default:
			matches, err := doublestar.Glob(pattern)
			if err != nil {
				return nil, errors.Wrapf(err, "bad pattern %q", pattern)
			}
			sort.Strings(matches)
			found := 0
			for _, m := range matches {
				if !imageproc.SupportedExtension(m) {
					continue
				}
				add(m)
				found++
			}
			if found == 0 {
				return nil, errors.Errorf("no images match %q", pattern)
			}
		}
	}
	return out, nil
}

func imagesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !imageproc.SupportedExtension(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
