package trees

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// DirectoryTree is the in-memory metadata snapshot of one directory
// hierarchy: a forest of sorted top-level nodes plus a flat relative-path
// index into them. A tree is built once, from a disk scan or a snapshot
// stream, and is read-only afterwards; Clear releases it in bulk.
type DirectoryTree struct {
	top         []*DirectoryNode
	index       *pathIndex
	unsupported bool
	logger      *slog.Logger
}

// TreeOption customizes a DirectoryTree.
type TreeOption func(*DirectoryTree)

// WithLogger sets the logger used for scan and decode warnings.
func WithLogger(logger *slog.Logger) TreeOption {
	return func(t *DirectoryTree) {
		t.logger = logger
	}
}

// NewDirectoryTree returns an empty tree.
func NewDirectoryTree(opts ...TreeOption) *DirectoryTree {
	t := &DirectoryTree{
		index:  newPathIndex(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Roots returns the sorted top-level nodes.
func (t *DirectoryTree) Roots() []*DirectoryNode { return t.top }

// Len returns the number of entries in the tree.
func (t *DirectoryTree) Len() int { return t.index.len() }

// UnsupportedFound reports whether the most recent build encountered an
// unsupported node type or a multi-hard-link regular file. It is purely
// advisory and never affects comparison.
func (t *DirectoryTree) UnsupportedFound() bool { return t.unsupported }

// Clear releases the whole tree and invalidates the path index.
func (t *DirectoryTree) Clear() {
	t.top = nil
	t.index.clear()
	t.unsupported = false
}

// Search finds the record stored under a relative path.
func (t *DirectoryTree) Search(rel string) (*FileRecord, bool) {
	node, found := t.index.lookup(rel)
	if !found {
		return nil, false
	}
	return node.Record(), true
}

// SearchNode finds the node stored under a relative path.
func (t *DirectoryTree) SearchNode(rel string) (*DirectoryNode, bool) {
	return t.index.lookup(rel)
}

// WalkPrefix visits every record whose relative path starts with prefix,
// in index order. The callback returns false to stop early.
func (t *DirectoryTree) WalkPrefix(prefix string, fn func(*FileRecord) bool) {
	t.index.walkPrefix(prefix, func(node *DirectoryNode) bool {
		return !fn(node.Record())
	})
}

// FromPath builds the tree from inputPath: a directory is scanned, any
// other path is read as a snapshot file.
func (t *DirectoryTree) FromPath(ctx context.Context, inputPath string, opts ScanOptions) error {
	info, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("access %s: %w", inputPath, err)
	}
	if info.IsDir() {
		return t.ScanDirectory(ctx, inputPath, opts)
	}
	return t.ReadFromFile(inputPath)
}

// blocks collects the serialized form of the tree: one block of records
// per non-empty directory, in depth-first pre-order. Collecting is pure;
// separator handling is left to the writer.
func collectBlocks(nodes []*DirectoryNode, blocks *[][]*FileRecord) {
	if len(nodes) == 0 {
		return
	}
	block := make([]*FileRecord, 0, len(nodes))
	for _, n := range nodes {
		block = append(block, n.Record())
	}
	*blocks = append(*blocks, block)
	for _, n := range nodes {
		// Children are sorted with directories first, so the first
		// non-directory ends the descent at this level.
		if !n.Record().IsDirectory() {
			break
		}
		collectBlocks(n.Children(), blocks)
	}
}

// WriteTo serializes the tree as snapshot text: the records of each
// directory one per line, blocks separated by a single blank line, in
// depth-first pre-order. Empty directories contribute no block.
func (t *DirectoryTree) WriteTo(w io.Writer) error {
	var blocks [][]*FileRecord
	collectBlocks(t.top, &blocks)

	bw := bufio.NewWriter(w)
	for i, block := range blocks {
		if i > 0 {
			if err := bw.WriteByte('\n'); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
		}
		for _, rec := range block {
			if _, err := bw.WriteString(rec.EncodeLine()); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
			if err := bw.WriteByte('\n'); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// ReadFromFile reads a snapshot file into the tree.
func (t *DirectoryTree) ReadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return t.ReadFrom(f, path)
}

// ReadFrom parses snapshot text into the tree. source names the stream
// for error reporting and may be empty.
//
// Blocks are delimited by blank lines and reattached to their parent
// directory by replaying the writer's pre-order walk: a queue holds the
// directories still awaiting their children block, and each incoming
// block belongs to the first pending directory whose path matches the
// block's parent. Pending directories skipped over were empty and wrote
// no block. Any malformed line or misplaced block aborts the whole read;
// no partial tree survives.
func (t *DirectoryTree) ReadFrom(r io.Reader, source string) error {
	t.Clear()

	var (
		block      []*DirectoryNode
		blockStart int // line number of the block's first record
		pending    []*DirectoryNode
		rootDone   bool
	)

	attach := func() error {
		if len(block) == 0 {
			return nil
		}
		nodes := block
		block = nil

		parent := parentPath(nodes[0].Record().RelativePath())
		for _, n := range nodes[1:] {
			if parentPath(n.Record().RelativePath()) != parent {
				return &ParseError{Source: source, Line: blockStart,
					Reason: "entries from different directories grouped in one block"}
			}
		}
		sortNodes(nodes)

		if !rootDone {
			if parent != "" {
				return &ParseError{Source: source, Line: blockStart,
					Reason: "snapshot does not start with the top level directory"}
			}
			t.top = nodes
			rootDone = true
		} else {
			// Skip pending directories that turned out to be empty.
			for len(pending) > 0 && pending[0].Record().RelativePath() != parent {
				pending = pending[1:]
			}
			if len(pending) == 0 {
				return &ParseError{Source: source, Line: blockStart,
					Reason: fmt.Sprintf("directory content for %q out of order", parent)}
			}
			owner := pending[0]
			pending = pending[1:]
			owner.setChildren(nodes)
		}

		for _, n := range nodes {
			rec := n.Record()
			if !t.index.insert(n) {
				return &ParseError{Source: source, Line: blockStart,
					Reason: fmt.Sprintf("duplicate path %q", rec.RelativePath())}
			}
			if rec.Kind() == KindUnknown {
				t.unsupported = true
				t.logger.Warn("unsupported file type in snapshot", "path", rec.RelativePath())
			}
		}

		// The next blocks belong to this block's directories, in order.
		var dirs []*DirectoryNode
		for _, n := range nodes {
			if n.Record().IsDirectory() {
				dirs = append(dirs, n)
			}
		}
		pending = append(dirs, pending...)
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			if err := attach(); err != nil {
				t.Clear()
				return err
			}
			continue
		}
		rec, err := ParseLine(line, source, lineNo)
		if err != nil {
			t.Clear()
			return err
		}
		if len(block) == 0 {
			blockStart = lineNo
		}
		block = append(block, newDirectoryNode(rec))
	}
	if err := scanner.Err(); err != nil {
		t.Clear()
		if source != "" {
			return fmt.Errorf("read %s: %w", source, err)
		}
		return fmt.Errorf("read snapshot: %w", err)
	}
	if err := attach(); err != nil {
		t.Clear()
		return err
	}
	return nil
}
