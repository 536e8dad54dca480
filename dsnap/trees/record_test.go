package trees

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testRecord(kind NodeKind, relPath string) FileRecord {
	return FileRecord{
		kind:      kind,
		perm:      0o644,
		owner:     "root",
		group:     "root",
		mtime:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		relPath:   relPath,
		hardLinks: 1,
	}
}

func TestFileRecordLess(t *testing.T) {
	t.Run("directories sort before files", func(t *testing.T) {
		dir := testRecord(KindDirectory, "zzz")
		file := testRecord(KindRegular, "aaa")
		assert.True(t, dir.Less(&file))
		assert.False(t, file.Less(&dir))
	})

	t.Run("same kind orders by path", func(t *testing.T) {
		a := testRecord(KindRegular, "a.txt")
		b := testRecord(KindRegular, "b.txt")
		assert.True(t, a.Less(&b))
		assert.False(t, b.Less(&a))
	})

	t.Run("comparison is case sensitive", func(t *testing.T) {
		upper := testRecord(KindRegular, "README")
		lower := testRecord(KindRegular, "readme")
		assert.True(t, upper.Less(&lower))
	})

	t.Run("equal records are not less", func(t *testing.T) {
		a := testRecord(KindRegular, "same")
		b := testRecord(KindRegular, "same")
		assert.False(t, a.Less(&b))
		assert.False(t, b.Less(&a))
	})
}

func TestFileRecordEqual(t *testing.T) {
	t.Run("identical records are equal", func(t *testing.T) {
		a := testRecord(KindRegular, "f")
		b := a
		assert.True(t, a.Equal(&b))
	})

	t.Run("hard link count is ignored", func(t *testing.T) {
		a := testRecord(KindRegular, "f")
		b := a
		b.hardLinks = 7
		assert.True(t, a.Equal(&b))
	})

	t.Run("each metadata field participates", func(t *testing.T) {
		base := testRecord(KindRegular, "f")
		base.size = 10
		base.digest = "da39a3ee5e6b4b0d3255bfef95601890afd80709"

		mutations := map[string]func(*FileRecord){
			"kind":   func(r *FileRecord) { r.kind = KindSymlink },
			"perm":   func(r *FileRecord) { r.perm = 0o600 },
			"owner":  func(r *FileRecord) { r.owner = "nobody" },
			"group":  func(r *FileRecord) { r.group = "wheel" },
			"mtime":  func(r *FileRecord) { r.mtime = r.mtime.Add(time.Second) },
			"size":   func(r *FileRecord) { r.size = 11 },
			"path":   func(r *FileRecord) { r.relPath = "g" },
			"target": func(r *FileRecord) { r.linkTarget = "elsewhere" },
			"digest": func(r *FileRecord) { r.digest = "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d" },
		}
		for name, mutate := range mutations {
			t.Run(name, func(t *testing.T) {
				changed := base
				mutate(&changed)
				assert.False(t, base.Equal(&changed))
				assert.False(t, changed.Equal(&base))
			})
		}
	})

	t.Run("empty digest matches any digest", func(t *testing.T) {
		hashed := testRecord(KindRegular, "f")
		hashed.digest = "da39a3ee5e6b4b0d3255bfef95601890afd80709"
		skipped := testRecord(KindRegular, "f")

		assert.True(t, hashed.Equal(&skipped))
		assert.True(t, skipped.Equal(&hashed))
		assert.True(t, skipped.Equal(&skipped))
	})
}

func TestNodeKindString(t *testing.T) {
	assert.Equal(t, "file", KindRegular.String())
	assert.Equal(t, "directory", KindDirectory.String())
	assert.Equal(t, "symlink", KindSymlink.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}
