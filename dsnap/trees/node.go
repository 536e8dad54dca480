package trees

import "sort"

// DirectoryNode wraps one FileRecord and, for directories, the sorted
// list of child nodes. Non-directory nodes never have children.
type DirectoryNode struct {
	record   FileRecord
	children []*DirectoryNode
}

func newDirectoryNode(record FileRecord) *DirectoryNode {
	return &DirectoryNode{record: record}
}

// Record returns the metadata record of this node.
func (n *DirectoryNode) Record() *FileRecord { return &n.record }

// Children returns the sorted child nodes, or nil for non-directories
// and empty directories.
func (n *DirectoryNode) Children() []*DirectoryNode { return n.children }

// setChildren installs the sorted content of a directory node. Installing
// children on a non-directory is a programming error in the builder.
func (n *DirectoryNode) setChildren(children []*DirectoryNode) {
	if !n.record.IsDirectory() {
		panic("trees: setChildren on non-directory node " + n.record.RelativePath())
	}
	n.children = children
}

// sortNodes orders sibling nodes by the record total order: directories
// first, then lexicographic relative path.
func sortNodes(nodes []*DirectoryNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].record.Less(&nodes[j].record)
	})
}
