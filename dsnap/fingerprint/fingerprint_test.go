package fingerprint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest(t *testing.T) {
	t.Run("known digests", func(t *testing.T) {
		cases := []struct {
			input string
			want  string
		}{
			{"", "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
			{"hello", "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
			{"The quick brown fox jumps over the lazy dog", "2fd4e1c67a2d28fced849ee1bb76e7391b93eb12"},
		}
		for _, tc := range cases {
			got, err := Digest(strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Len(t, got, Size)
		}
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		first, err := Digest(strings.NewReader("same bytes"))
		require.NoError(t, err)
		second, err := Digest(strings.NewReader("same bytes"))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	digest, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", digest)

	_, err = HashFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
