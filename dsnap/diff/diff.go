// Package diff compares two directory snapshots and reports every entry
// that exists on only one side or whose metadata differs between them.
package diff

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/dirsnap/dsnap/trees"
)

// Ways is the number of snapshots a row spans. The merge is written for
// two sides; raising this requires extending the merge, not the types.
const Ways = 2

// Row is one reported difference. Exactly the slots of the sides that
// hold an entry at this path are non-nil; a one-sided row marks an entry
// missing from the other snapshot.
type Row [Ways]*trees.FileRecord

// Path returns the relative path the row describes.
func (r Row) Path() string {
	for _, rec := range r {
		if rec != nil {
			return rec.RelativePath()
		}
	}
	return ""
}

// Diff is the ordered list of differences between two snapshots. Rows
// follow the snapshot total order, parents before their contents.
type Diff []Row

// Options selects which metadata fields participate in record
// comparison. Entry kind and relative path always participate.
type Options struct {
	Perm          bool
	Owner         bool
	Group         bool
	Mtime         bool
	Size          bool
	Fingerprint   bool
	SymlinkTarget bool
}

// DefaultOptions compares every field.
func DefaultOptions() Options {
	return Options{
		Perm:          true,
		Owner:         true,
		Group:         true,
		Mtime:         true,
		Size:          true,
		Fingerprint:   true,
		SymlinkTarget: true,
	}
}

// ParseIgnoreSpec turns a comma-separated list of field names into
// Options with those fields excluded from comparison. Recognized names
// are perm, owner, group, mtime, size, hash and symlink.
func ParseIgnoreSpec(spec string) (Options, error) {
	opt := DefaultOptions()
	if spec == "" {
		return opt, nil
	}
	for _, name := range strings.Split(spec, ",") {
		switch strings.TrimSpace(name) {
		case "perm":
			opt.Perm = false
		case "owner":
			opt.Owner = false
		case "group":
			opt.Group = false
		case "mtime":
			opt.Mtime = false
		case "size":
			opt.Size = false
		case "hash":
			opt.Fingerprint = false
		case "symlink":
			opt.SymlinkTarget = false
		default:
			return Options{}, fmt.Errorf("unknown comparison field %q", name)
		}
	}
	return opt, nil
}

// equal reports whether two records at the same path match under the
// selected fields. An empty fingerprint on either side is treated as a
// wildcard, mirroring snapshots captured without content hashing.
func equal(a, b *trees.FileRecord, opt Options) bool {
	if a.Kind() != b.Kind() || a.RelativePath() != b.RelativePath() {
		return false
	}
	if opt.Perm && a.Perm() != b.Perm() {
		return false
	}
	if opt.Owner && a.Owner() != b.Owner() {
		return false
	}
	if opt.Group && a.Group() != b.Group() {
		return false
	}
	if opt.Mtime && !a.ModTime().Equal(b.ModTime()) {
		return false
	}
	if opt.Size && a.Size() != b.Size() {
		return false
	}
	if opt.Fingerprint &&
		a.Fingerprint() != "" && b.Fingerprint() != "" &&
		a.Fingerprint() != b.Fingerprint() {
		return false
	}
	if opt.SymlinkTarget && a.SymlinkTarget() != b.SymlinkTarget() {
		return false
	}
	return true
}

// Compare walks two snapshot trees and returns their differences in
// snapshot order. Directories present on both sides are descended into
// even when their own metadata differs; a directory present on one side
// only is reported together with its entire subtree.
func Compare(a, b *trees.DirectoryTree, opt Options) Diff {
	var out Diff
	mergeLevel(a.Roots(), b.Roots(), opt, &out)
	return out
}

// mergeLevel merges one pair of sorted sibling lists. Both lists follow
// the snapshot total order, so a single forward pass pairs up entries
// sharing a path and attributes the rest to one side.
func mergeLevel(left, right []*trees.DirectoryNode, opt Options, out *Diff) {
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		l, r := left[i].Record(), right[j].Record()
		switch {
		// Path equality is checked before order so that a kind change
		// at the same path yields one row, not two.
		case l.RelativePath() == r.RelativePath():
			if !equal(l, r, opt) {
				*out = append(*out, Row{l, r})
			}
			if l.IsDirectory() && r.IsDirectory() {
				mergeLevel(left[i].Children(), right[j].Children(), opt, out)
			}
			i++
			j++
		case l.Less(r):
			emitSubtree(left[i], 0, out)
			i++
		default:
			emitSubtree(right[j], 1, out)
			j++
		}
	}
	for ; i < len(left); i++ {
		emitSubtree(left[i], 0, out)
	}
	for ; j < len(right); j++ {
		emitSubtree(right[j], 1, out)
	}
}

// emitSubtree reports a one-sided node and all its descendants in
// pre-order into the given slot.
func emitSubtree(node *trees.DirectoryNode, slot int, out *Diff) {
	var row Row
	row[slot] = node.Record()
	*out = append(*out, row)
	for _, child := range node.Children() {
		emitSubtree(child, slot, out)
	}
}
