package trees

import (
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/dirsnap/dsnap/fingerprint"
)

// timeLayout is the timestamp portion of a snapshot line. The zone is
// always the literal "+0000"; no other offset is produced or accepted.
const timeLayout = "2006-01-02 15:04:05"

const permChars = "rwxrwxrwx"

// omittedDigest marks a regular file whose fingerprint was not computed.
const omittedDigest = "*"

// ParseError describes a malformed snapshot line. It carries enough
// context to locate the offending line in the source stream.
type ParseError struct {
	Source string // stream name, may be empty
	Line   int    // 1-based line number, 0 when unknown
	Reason string
	Raw    string // offending line text, may be empty
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.Source != "" {
		b.WriteString(e.Source)
		b.WriteString(": ")
	}
	b.WriteString(e.Reason)
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.Raw != "" {
		fmt.Fprintf(&b, ", wrong line is %q", e.Raw)
	}
	return b.String()
}

// EncodeLine renders the record as one line of the snapshot format,
// without a trailing newline. Decoding the result with ParseLine yields
// an equal record.
func (r *FileRecord) EncodeLine() string {
	var b strings.Builder
	b.WriteByte(r.kind.symbol())
	for i := 0; i < 9; i++ {
		if r.perm&(1<<(8-i)) != 0 {
			b.WriteByte(permChars[i])
		} else {
			b.WriteByte('-')
		}
	}
	b.WriteByte(' ')
	b.WriteString(r.owner)
	b.WriteByte(' ')
	b.WriteString(r.group)
	b.WriteByte(' ')
	b.WriteString(r.mtime.UTC().Format(timeLayout))
	b.WriteString(" +0000 ")
	switch r.kind {
	case KindRegular:
		b.WriteString(strconv.FormatInt(r.size, 10))
		b.WriteByte(' ')
		if r.digest == "" {
			b.WriteString(omittedDigest)
		} else {
			b.WriteString(r.digest)
		}
		b.WriteByte(' ')
	case KindSymlink:
		b.WriteString(r.linkTarget)
		b.WriteByte(' ')
	}
	b.WriteString(r.relPath)
	return b.String()
}

// lineFields walks the space-separated fields of a snapshot line.
type lineFields struct {
	rest string
	ok   bool
}

func (f *lineFields) next() string {
	if !f.ok {
		return ""
	}
	head, rest, found := strings.Cut(f.rest, " ")
	if head == "" {
		f.ok = false
		return ""
	}
	if found {
		f.rest = rest
	} else {
		f.rest = ""
	}
	return head
}

// ParseLine decodes one snapshot line into a record. source and lineNo
// are used for error reporting only; pass "" and 0 when unknown.
//
// Decoding is strict: a malformed permission string, timestamp,
// fingerprint or path is a *ParseError. The relative path is the final
// field and may contain spaces; it extends to the end of the line.
func ParseLine(line, source string, lineNo int) (FileRecord, error) {
	fail := func(reason string) (FileRecord, error) {
		return FileRecord{}, &ParseError{Source: source, Line: lineNo, Reason: reason, Raw: line}
	}

	fields := lineFields{rest: line, ok: true}

	permStr := fields.next()
	if len(permStr) != 10 {
		return fail("error reading permission string")
	}
	var rec FileRecord
	switch permStr[0] {
	case '-':
		rec.kind = KindRegular
	case 'd':
		rec.kind = KindDirectory
	case 'l':
		rec.kind = KindSymlink
	case '?':
		rec.kind = KindUnknown
	default:
		return fail("unrecognized file type")
	}
	for i := 0; i < 9; i++ {
		switch permStr[1+i] {
		case permChars[i]:
			rec.perm |= fs.FileMode(1) << (8 - i)
		case '-':
		default:
			return fail("permissions not correct")
		}
	}

	rec.owner = fields.next()
	rec.group = fields.next()
	if rec.owner == "" || rec.group == "" {
		return fail("error reading user/group")
	}

	date := fields.next()
	clock := fields.next()
	if date == "" || clock == "" {
		return fail("error reading mtime")
	}
	mtime, err := time.Parse(timeLayout, date+" "+clock)
	if err != nil {
		return fail("error reading mtime")
	}
	rec.mtime = mtime
	if zone := fields.next(); zone != "+0000" {
		return fail("error reading mtime")
	}

	switch rec.kind {
	case KindRegular:
		sizeStr := fields.next()
		size, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil || size < 0 {
			return fail("error reading size")
		}
		rec.size = size
		digest := fields.next()
		switch {
		case digest == omittedDigest:
			rec.digest = ""
		case len(digest) == fingerprint.Size:
			rec.digest = digest
		default:
			return fail("error reading hash")
		}
	case KindSymlink:
		target := fields.next()
		if target == "" {
			return fail("error reading symlink target")
		}
		rec.linkTarget = target
	}

	// The path is the last field and is read to end of line.
	if !fields.ok || fields.rest == "" {
		return fail("error reading path")
	}
	rec.relPath = fields.rest

	// Fields not present in the snapshot format reset to their defaults.
	rec.hardLinks = 1
	return rec, nil
}
