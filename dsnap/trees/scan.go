package trees

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sourcegraph/conc/pool"

	"github.com/ZanzyTHEbar/dirsnap/dsnap/fingerprint"
)

// ScanOptions tunes a directory scan.
type ScanOptions struct {
	// OmitFingerprints skips content hashing; regular files carry an
	// empty digest, which compares equal to anything.
	OmitFingerprints bool
	// Workers bounds the goroutines hashing file contents. Zero means
	// one per CPU.
	Workers int
	// SkipPatterns are gitignore-style patterns; matching entries and
	// their subtrees are excluded from the scan.
	SkipPatterns []string
}

type scanState struct {
	tree    *DirectoryTree
	topPath string
	opts    ScanOptions
	matcher *ignore.GitIgnore
}

// ScanDirectory builds the tree from the filesystem under topPath.
// Symlinks are recorded, never followed. Records are ordered with
// directories before files, then by path, so repeated scans of an
// unchanged tree serialize identically.
func (t *DirectoryTree) ScanDirectory(ctx context.Context, topPath string, opts ScanOptions) error {
	t.Clear()

	abs, err := filepath.Abs(topPath)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", topPath, err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return fmt.Errorf("access %s: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("scan %s: not a directory", abs)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	s := &scanState{
		tree:    t,
		topPath: abs,
		opts:    opts,
		matcher: ignore.CompileIgnoreLines(opts.SkipPatterns...),
	}
	t.top, err = s.scanDir(ctx, "")
	if err != nil {
		t.Clear()
		return err
	}
	return nil
}

// scanDir builds the sorted records of one directory and descends into
// its subdirectories. rel is the directory's path relative to the scan
// top, empty for the top itself.
func (s *scanState) scanDir(ctx context.Context, rel string) ([]*DirectoryNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirPath := filepath.Join(s.topPath, filepath.FromSlash(rel))
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dirPath, err)
	}

	nodes := make([]*DirectoryNode, 0, len(entries))
	for _, entry := range entries {
		childRel := entry.Name()
		if rel != "" {
			childRel = rel + "/" + entry.Name()
		}
		if s.matcher.MatchesPath(childRel) {
			continue
		}
		rec, err := s.newFileRecord(childRel)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, newDirectoryNode(rec))
	}
	sortNodes(nodes)

	if !s.opts.OmitFingerprints {
		if err := s.fillFingerprints(ctx, nodes); err != nil {
			return nil, err
		}
	}

	for _, n := range nodes {
		rec := n.Record()
		if !s.tree.index.insert(n) {
			return nil, fmt.Errorf("duplicate path %q under %s", rec.RelativePath(), s.topPath)
		}
		switch {
		case rec.Kind() == KindUnknown:
			s.tree.unsupported = true
			s.tree.logger.Warn("unsupported file type", "path", rec.RelativePath())
		case !rec.IsDirectory() && rec.HardLinkCount() != 1:
			s.tree.unsupported = true
			s.tree.logger.Warn("multiple hard links", "path", rec.RelativePath(),
				"links", rec.HardLinkCount())
		}
	}

	for _, n := range nodes {
		if !n.Record().IsDirectory() {
			continue
		}
		children, err := s.scanDir(ctx, n.Record().RelativePath())
		if err != nil {
			return nil, err
		}
		n.setChildren(children)
	}
	return nodes, nil
}

// fillFingerprints hashes the regular files of one directory block in
// parallel. Nodes keep their sorted positions, so output stays
// deterministic regardless of hashing order.
func (s *scanState) fillFingerprints(ctx context.Context, nodes []*DirectoryNode) error {
	p := pool.New().WithMaxGoroutines(s.opts.Workers).WithContext(ctx)
	for _, n := range nodes {
		rec := n.Record()
		if rec.Kind() != KindRegular {
			continue
		}
		path := filepath.Join(s.topPath, filepath.FromSlash(rec.RelativePath()))
		p.Go(func(ctx context.Context) error {
			digest, err := fingerprint.HashFile(path)
			if err != nil {
				return fmt.Errorf("fingerprint %s: %w", path, err)
			}
			rec.setFingerprint(digest)
			return nil
		})
	}
	return p.Wait()
}

// newFileRecord stats one entry and fills every field except the
// fingerprint, which is hashed separately.
func (s *scanState) newFileRecord(rel string) (FileRecord, error) {
	path := filepath.Join(s.topPath, filepath.FromSlash(rel))
	info, err := os.Lstat(path)
	if err != nil {
		return FileRecord{}, fmt.Errorf("stat %s: %w", path, err)
	}

	rec := FileRecord{
		perm:      info.Mode().Perm(),
		mtime:     info.ModTime().Truncate(time.Second).UTC(),
		relPath:   rel,
		owner:     "unknown",
		group:     "unknown",
		hardLinks: 1,
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		rec.owner = lookupOwner(st.Uid)
		rec.group = lookupGroup(st.Gid)
		rec.hardLinks = uint64(st.Nlink)
	}
	// Owner and group are space-delimited fields in the snapshot format;
	// a name with whitespace would decode as something else entirely.
	if strings.ContainsAny(rec.owner, " \n") || strings.ContainsAny(rec.group, " \n") {
		return FileRecord{}, fmt.Errorf("stat %s: owner %q group %q contain whitespace, cannot be serialized",
			path, rec.owner, rec.group)
	}

	switch info.Mode() & fs.ModeType {
	case 0:
		rec.kind = KindRegular
		rec.size = info.Size()
	case fs.ModeDir:
		rec.kind = KindDirectory
	case fs.ModeSymlink:
		rec.kind = KindSymlink
		target, err := os.Readlink(path)
		if err != nil {
			return FileRecord{}, fmt.Errorf("readlink %s: %w", path, err)
		}
		// The target is a space-delimited field in the snapshot format;
		// a space inside it would shift the path on decode and yield a
		// wrong record instead of an error.
		if strings.ContainsAny(target, " \n") {
			return FileRecord{}, fmt.Errorf("symlink %s: target %q contains whitespace, cannot be serialized",
				path, target)
		}
		rec.linkTarget = target
	default:
		rec.kind = KindUnknown
	}
	return rec, nil
}

var (
	ownerCache sync.Map // uint32 -> string
	groupCache sync.Map // uint32 -> string
)

func lookupOwner(uid uint32) string {
	if cached, ok := ownerCache.Load(uid); ok {
		return cached.(string)
	}
	name := strconv.FormatUint(uint64(uid), 10)
	if u, err := user.LookupId(name); err == nil {
		name = u.Username
	}
	ownerCache.Store(uid, name)
	return name
}

func lookupGroup(gid uint32) string {
	if cached, ok := groupCache.Load(gid); ok {
		return cached.(string)
	}
	name := strconv.FormatUint(uint64(gid), 10)
	if g, err := user.LookupGroupId(name); err == nil {
		name = g.Name
	}
	groupCache.Store(gid, name)
	return name
}
