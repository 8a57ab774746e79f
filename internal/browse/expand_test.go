package browse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, filepath.Join(dir, "a.jpg"))
	b := touch(t, filepath.Join(dir, "b.PNG"))
	touch(t, filepath.Join(dir, "notes.txt"))
	nested := touch(t, filepath.Join(dir, "acne", "deep", "c.bmp"))
	jpeg := touch(t, filepath.Join(dir, "acne", "d.jpeg"))

	t.Run("directory is not recursive", func(t *testing.T) {
		paths, err := Expand([]string{dir})
		require.NoError(t, err)
		assert.Equal(t, []string{a, b}, paths)
	})

	t.Run("double star crosses directories", func(t *testing.T) {
		paths, err := Expand([]string{filepath.Join(dir, "acne", "**", "*")})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{nested, jpeg}, paths)
	})

	t.Run("explicit file is kept", func(t *testing.T) {
		notes := filepath.Join(dir, "notes.txt")
		paths, err := Expand([]string{notes})
		require.NoError(t, err)
		assert.Equal(t, []string{notes}, paths)
	})

	t.Run("duplicates are dropped and order kept", func(t *testing.T) {
		paths, err := Expand([]string{b, dir})
		require.NoError(t, err)
		assert.Equal(t, []string{b, a}, paths)
	})

	t.Run("missing literal path is kept", func(t *testing.T) {
		missing := filepath.Join(dir, "missing.jpg")
		paths, err := Expand([]string{a, missing})
		require.NoError(t, err)
		assert.Equal(t, []string{a, missing}, paths)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := Expand([]string{filepath.Join(dir, "*.gif")})
		assert.Error(t, err)
	})
}
