package gitcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("creates the base directory", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "cache")

		cache, err := New(base)
		require.NoError(t, err)
		assert.Equal(t, base, cache.BaseDir())

		fi, err := os.Stat(base)
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	})

	t.Run("resolves relative base directories once", func(t *testing.T) {
		t.Chdir(t.TempDir())
		wd, err := os.Getwd()
		require.NoError(t, err)

		cache, err := New("cache")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(wd, "cache"), cache.BaseDir())
	})

	t.Run("memory filesystem stays in memory", func(t *testing.T) {
		fs := memfs.New()

		cache, err := New("/gitcache", WithFilesystem(fs))
		require.NoError(t, err)
		assert.Equal(t, "/gitcache", cache.BaseDir())

		_, err = fs.Stat("/gitcache")
		assert.NoError(t, err)
	})
}
