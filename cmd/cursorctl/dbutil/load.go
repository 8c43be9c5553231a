package dbutil

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/cursor"
	"github.com/maniacs-db/drizzle-sub000/internal/engine"
	"github.com/maniacs-db/drizzle-sub000/internal/replication"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
	"github.com/maniacs-db/drizzle-sub000/internal/session"
)

type LoadOptions struct {
	// Rows is the expected number of rows, 0 if unknown.
	Rows uint64
	Vars session.Variables
}

type LoadResult struct {
	Rows          int
	FirstInsertID uint64
	Warnings      int
}

// LoadJSON reads one JSON object per line from r and inserts them
// into the table in a single statement.
func LoadJSON(ctx context.Context, db *DB, r io.Reader, opts LoadOptions) (*LoadResult, error) {
	sess := session.New(session.Options{Vars: opts.Vars, Replicator: db.Replicator()})

	h, err := db.Engine.NewHandler()
	if err != nil {
		return nil, err
	}
	c, err := cursor.Open(sess, h, db.Table, engine.ReadWrite)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if _, err := sess.BeginStatement(replication.KindLoad, replication.ReplaceInferred); err != nil {
		return nil, err
	}
	c.StartBulkInsert(opts.Rows)

	res, err := loadRows(ctx, c, r)
	if err != nil {
		return nil, errors.CombineErrors(err, sess.AbortStatement())
	}

	if err := sess.EndStatement(); err != nil {
		return nil, err
	}
	res.FirstInsertID = sess.LastInsertID()
	res.Warnings = len(sess.Warnings())
	return res, nil
}

func loadRows(ctx context.Context, c *cursor.Cursor, r io.Reader) (*LoadResult, error) {
	var res LoadResult
	columns := c.Table().ColumnNames()

	s := bufio.NewScanner(r)
	line := 0
	for s.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data := bytes.TrimSpace(s.Bytes())
		if len(data) == 0 {
			continue
		}

		rw, err := row.ParseJSON(data, columns)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if err := c.Table().Conform(rw); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if err := c.InsertRow(rw); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		res.Rows++
	}

	return &res, s.Err()
}
