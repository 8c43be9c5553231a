package dbutil

import (
	"context"
	"fmt"
	"io"

	"github.com/maniacs-db/drizzle-sub000/internal/replication"
	"github.com/maniacs-db/drizzle-sub000/internal/replication/changelog"
)

// DumpChangelog writes the statements of the change log stored at path,
// starting at sequence from.
func DumpChangelog(ctx context.Context, path string, from uint64, w io.Writer) error {
	l, err := changelog.Open(changelog.Options{Path: path})
	if err != nil {
		return err
	}
	defer l.Close()

	return l.Iterate(from, func(s *replication.Statement) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintf(w, "#%d query=%d %s %s (%d rows)\n", s.Seq, s.QueryID, s.Type, s.Table, len(s.Events))
		for i := range s.Events {
			fmt.Fprintf(w, "  %s\n", &s.Events[i])
		}
		return nil
	})
}
