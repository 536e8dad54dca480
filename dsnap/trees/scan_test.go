package trees

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScanFixture lays out a small tree with every supported node kind:
//
//	top/
//	  a.txt        "hello"
//	  sub/
//	    b.txt      ""
//	    deep/      (empty)
//	  link -> sub/b.txt
func writeScanFixture(t *testing.T) string {
	t.Helper()
	top := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(top, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(top, "sub", "deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(top, "sub", "b.txt"), nil, 0o600))
	require.NoError(t, os.Symlink("sub/b.txt", filepath.Join(top, "link")))
	return top
}

func scanFixture(t *testing.T, top string, opts ScanOptions) *DirectoryTree {
	t.Helper()
	tree := NewDirectoryTree()
	require.NoError(t, tree.ScanDirectory(context.Background(), top, opts))
	return tree
}

func TestScanDirectory(t *testing.T) {
	top := writeScanFixture(t)
	tree := scanFixture(t, top, ScanOptions{})

	t.Run("every entry captured", func(t *testing.T) {
		assert.Equal(t, 5, tree.Len())
	})

	t.Run("kinds", func(t *testing.T) {
		for rel, kind := range map[string]NodeKind{
			"a.txt":    KindRegular,
			"sub":      KindDirectory,
			"sub/deep": KindDirectory,
			"link":     KindSymlink,
		} {
			rec, found := tree.Search(rel)
			require.True(t, found, rel)
			assert.Equal(t, kind, rec.Kind(), rel)
		}
	})

	t.Run("top level sorted directories first", func(t *testing.T) {
		var got []string
		for _, n := range tree.Roots() {
			got = append(got, n.Record().RelativePath())
		}
		assert.Equal(t, []string{"sub", "a.txt", "link"}, got)
	})

	t.Run("fingerprints match content", func(t *testing.T) {
		sum := sha1.Sum([]byte("hello"))
		rec, found := tree.Search("a.txt")
		require.True(t, found)
		assert.Equal(t, hex.EncodeToString(sum[:]), rec.Fingerprint())
		assert.Equal(t, int64(5), rec.Size())

		empty := sha1.Sum(nil)
		rec, found = tree.Search("sub/b.txt")
		require.True(t, found)
		assert.Equal(t, hex.EncodeToString(empty[:]), rec.Fingerprint())
		assert.Equal(t, int64(0), rec.Size())
	})

	t.Run("symlink target recorded without resolving", func(t *testing.T) {
		rec, found := tree.Search("link")
		require.True(t, found)
		assert.Equal(t, "sub/b.txt", rec.SymlinkTarget())
		assert.Empty(t, rec.Fingerprint())
	})

	t.Run("permissions and timestamps captured", func(t *testing.T) {
		rec, found := tree.Search("sub/b.txt")
		require.True(t, found)
		assert.Equal(t, os.FileMode(0o600), rec.Perm())
		assert.Equal(t, "UTC", rec.ModTime().Location().String())
		assert.Zero(t, rec.ModTime().Nanosecond())
		assert.NotEmpty(t, rec.Owner())
		assert.NotEmpty(t, rec.Group())
	})

	t.Run("clean scan reports no unsupported entries", func(t *testing.T) {
		assert.False(t, tree.UnsupportedFound())
	})
}

func TestScanDirectoryOmitFingerprints(t *testing.T) {
	top := writeScanFixture(t)
	tree := scanFixture(t, top, ScanOptions{OmitFingerprints: true})

	rec, found := tree.Search("a.txt")
	require.True(t, found)
	assert.Empty(t, rec.Fingerprint())
	assert.Equal(t, int64(5), rec.Size())

	var out strings.Builder
	require.NoError(t, tree.WriteTo(&out))
	assert.Contains(t, out.String(), " 5 * a.txt")
}

func TestScanDirectorySkipPatterns(t *testing.T) {
	top := writeScanFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(top, ".git", "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(top, "sub", "skip.log"), []byte("x"), 0o644))

	tree := scanFixture(t, top, ScanOptions{SkipPatterns: []string{".git", "*.log"}})

	_, found := tree.Search(".git")
	assert.False(t, found)
	_, found = tree.Search("sub/skip.log")
	assert.False(t, found)
	_, found = tree.Search("a.txt")
	assert.True(t, found)
}

func TestScanDirectoryHardLinkWarning(t *testing.T) {
	top := writeScanFixture(t)
	require.NoError(t, os.Link(filepath.Join(top, "a.txt"), filepath.Join(top, "a.hard")))

	tree := scanFixture(t, top, ScanOptions{})
	assert.True(t, tree.UnsupportedFound())

	rec, found := tree.Search("a.hard")
	require.True(t, found)
	assert.Equal(t, uint64(2), rec.HardLinkCount())
}

func TestScanDirectoryRejectsSymlinkTargetWithSpace(t *testing.T) {
	// A space inside a symlink target would shift the space-delimited
	// fields on decode: "my target" plus path "link" reads back as
	// target "my" and path "target link". The scan must fail instead of
	// producing a snapshot that silently round-trips to a wrong tree.
	top := t.TempDir()
	require.NoError(t, os.Symlink("my target", filepath.Join(top, "link")))

	tree := NewDirectoryTree()
	err := tree.ScanDirectory(context.Background(), top, ScanOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whitespace")
	assert.Equal(t, 0, tree.Len())
}

func TestScanDirectoryRoundTrip(t *testing.T) {
	top := writeScanFixture(t)
	tree := scanFixture(t, top, ScanOptions{})

	var out strings.Builder
	require.NoError(t, tree.WriteTo(&out))

	reread := NewDirectoryTree()
	require.NoError(t, reread.ReadFrom(strings.NewReader(out.String()), "round-trip"))
	require.Equal(t, tree.Len(), reread.Len())

	tree.WalkPrefix("", func(rec *FileRecord) bool {
		parsed, found := reread.Search(rec.RelativePath())
		require.True(t, found, rec.RelativePath())
		assert.True(t, rec.Equal(parsed), rec.RelativePath())
		return true
	})
}

func TestScanDirectoryErrors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		tree := NewDirectoryTree()
		err := tree.ScanDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"), ScanOptions{})
		assert.Error(t, err)
	})

	t.Run("regular file is rejected", func(t *testing.T) {
		top := t.TempDir()
		file := filepath.Join(top, "f")
		require.NoError(t, os.WriteFile(file, nil, 0o644))
		tree := NewDirectoryTree()
		err := tree.ScanDirectory(context.Background(), file, ScanOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})

	t.Run("cancelled context aborts the scan", func(t *testing.T) {
		top := writeScanFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		tree := NewDirectoryTree()
		err := tree.ScanDirectory(ctx, top, ScanOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, tree.Len())
	})
}

func TestFromPath(t *testing.T) {
	top := writeScanFixture(t)

	t.Run("directory input scans", func(t *testing.T) {
		tree := NewDirectoryTree()
		require.NoError(t, tree.FromPath(context.Background(), top, ScanOptions{}))
		assert.Equal(t, 5, tree.Len())
	})

	t.Run("file input parses", func(t *testing.T) {
		scanned := scanFixture(t, top, ScanOptions{})
		var out strings.Builder
		require.NoError(t, scanned.WriteTo(&out))
		snapFile := filepath.Join(t.TempDir(), "snap.txt")
		require.NoError(t, os.WriteFile(snapFile, []byte(out.String()), 0o644))

		tree := NewDirectoryTree()
		require.NoError(t, tree.FromPath(context.Background(), snapFile, ScanOptions{}))
		assert.Equal(t, scanned.Len(), tree.Len())
	})

	t.Run("missing input", func(t *testing.T) {
		tree := NewDirectoryTree()
		err := tree.FromPath(context.Background(), filepath.Join(top, "missing"), ScanOptions{})
		assert.Error(t, err)
	})
}
