package trees

import (
	"strings"

	"github.com/armon/go-radix"
)

// pathIndex is the flat relative-path lookup into an owned tree. It is a
// compressed trie (patricia tree) so exact lookups cost O(k) in the path
// length, and prefix scans come for free. The index confers no
// ownership: it is rebuilt from scratch with the tree and dropped by
// Clear.
type pathIndex struct {
	tree *radix.Tree
}

func newPathIndex() *pathIndex {
	return &pathIndex{tree: radix.New()}
}

// insert adds a node under its relative path. It reports false and
// leaves the index unchanged when the path is already present, which a
// well-formed tree never produces.
func (idx *pathIndex) insert(node *DirectoryNode) bool {
	rel := node.Record().RelativePath()
	if _, exists := idx.tree.Get(rel); exists {
		return false
	}
	idx.tree.Insert(rel, node)
	return true
}

// lookup finds the node for an exact relative path.
func (idx *pathIndex) lookup(rel string) (*DirectoryNode, bool) {
	value, found := idx.tree.Get(rel)
	if !found {
		return nil, false
	}
	return value.(*DirectoryNode), true
}

// walkPrefix visits every indexed node whose relative path starts with
// the given prefix.
func (idx *pathIndex) walkPrefix(prefix string, fn func(*DirectoryNode) bool) {
	idx.tree.WalkPrefix(prefix, func(key string, value interface{}) bool {
		return fn(value.(*DirectoryNode))
	})
}

func (idx *pathIndex) len() int { return idx.tree.Len() }

func (idx *pathIndex) clear() { idx.tree = radix.New() }

// parentPath returns the parent of a slash-separated relative path, or
// the empty string for top-level entries.
func parentPath(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[:i]
	}
	return ""
}
