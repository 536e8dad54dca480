package diff

import (
	"bufio"
	"fmt"
	"io"
)

// Render writes the diff in unified-style text: per row a "- " line for
// the first snapshot's record, a "+ " line for the second's, then a
// blank line. One-sided rows produce a single marked line.
func (d Diff) Render(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, row := range d {
		if row[0] != nil {
			if _, err := fmt.Fprintf(bw, "- %s\n", row[0].EncodeLine()); err != nil {
				return fmt.Errorf("write diff: %w", err)
			}
		}
		if row[1] != nil {
			if _, err := fmt.Fprintf(bw, "+ %s\n", row[1].EncodeLine()); err != nil {
				return fmt.Errorf("write diff: %w", err)
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("write diff: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write diff: %w", err)
	}
	return nil
}
