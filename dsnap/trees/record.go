// Package trees builds and serializes in-memory metadata snapshots of
// directory hierarchies, and provides the ordered node structures the
// diff engine merges.
package trees

import (
	"io/fs"
	"time"
)

// NodeKind is the closed set of filesystem entry types a snapshot records.
// Device nodes, sockets and FIFOs all collapse into KindUnknown.
type NodeKind uint8

const (
	KindUnknown NodeKind = iota
	KindRegular
	KindDirectory
	KindSymlink
)

// String returns the kind as a human-readable word.
func (k NodeKind) String() string {
	switch k {
	case KindRegular:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// symbol is the single-character type marker used by the snapshot format.
func (k NodeKind) symbol() byte {
	switch k {
	case KindRegular:
		return '-'
	case KindDirectory:
		return 'd'
	case KindSymlink:
		return 'l'
	default:
		return '?'
	}
}

// FileRecord holds the captured metadata of one filesystem entry. Records
// are immutable once a tree has been built; all fields are reached through
// read accessors.
//
// The size and fingerprint fields are only meaningful for regular files,
// linkTarget only for symlinks. hardLinks is observational metadata from
// live scans: it is never serialized and is reset to 1 on decode.
type FileRecord struct {
	kind       NodeKind
	perm       fs.FileMode // 9-bit rwxrwxrwx mask
	owner      string
	group      string
	mtime      time.Time // UTC, second resolution
	size       int64
	digest     string // empty when fingerprint computation was omitted
	relPath    string // slash-separated, relative to the tree top
	linkTarget string // raw, never resolved
	hardLinks  uint64
}

// Kind returns the entry type.
func (r *FileRecord) Kind() NodeKind { return r.kind }

// Perm returns the 9-bit permission mask.
func (r *FileRecord) Perm() fs.FileMode { return r.perm }

// Owner returns the resolved owner account name.
func (r *FileRecord) Owner() string { return r.owner }

// Group returns the resolved group name.
func (r *FileRecord) Group() string { return r.group }

// ModTime returns the last modification time, normalized to UTC with
// second resolution.
func (r *FileRecord) ModTime() time.Time { return r.mtime }

// Size returns the file size. Only meaningful for regular files.
func (r *FileRecord) Size() int64 { return r.size }

// Fingerprint returns the hex content digest, or the empty string when
// fingerprint computation was omitted. Only meaningful for regular files.
func (r *FileRecord) Fingerprint() string { return r.digest }

// RelativePath returns the slash-separated path relative to the tree top.
// It is the unique key of a record within one tree.
func (r *FileRecord) RelativePath() string { return r.relPath }

// SymlinkTarget returns the raw link target. Only meaningful for symlinks.
func (r *FileRecord) SymlinkTarget() string { return r.linkTarget }

// HardLinkCount reports the hard-link count observed during a disk scan.
// Records parsed from a snapshot always report 1.
func (r *FileRecord) HardLinkCount() uint64 { return r.hardLinks }

// IsDirectory reports whether the record describes a directory.
func (r *FileRecord) IsDirectory() bool { return r.kind == KindDirectory }

// setFingerprint is only used while a scan is still assembling the tree.
func (r *FileRecord) setFingerprint(digest string) { r.digest = digest }

// Less reports whether r sorts before other under the snapshot total
// order: directories before non-directories, then case-sensitive
// lexicographic comparison of relative paths.
func (r *FileRecord) Less(other *FileRecord) bool {
	if r.IsDirectory() != other.IsDirectory() {
		return r.IsDirectory()
	}
	return r.relPath < other.relPath
}

// Equal reports whether two records carry the same metadata. The
// hard-link count is observational and ignored. Either record may have
// been captured with fingerprint computation omitted, so an empty digest
// on either side acts as a wildcard; two populated digests must match.
func (r *FileRecord) Equal(other *FileRecord) bool {
	return r.kind == other.kind &&
		r.perm == other.perm &&
		r.owner == other.owner &&
		r.group == other.group &&
		r.mtime.Equal(other.mtime) &&
		r.size == other.size &&
		r.relPath == other.relPath &&
		r.linkTarget == other.linkTarget &&
		(r.digest == "" || other.digest == "" || r.digest == other.digest)
}
