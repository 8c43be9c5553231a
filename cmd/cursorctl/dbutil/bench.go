package dbutil

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/cursor"
	"github.com/maniacs-db/drizzle-sub000/internal/engine"
	"github.com/maniacs-db/drizzle-sub000/internal/replication"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
	"github.com/maniacs-db/drizzle-sub000/internal/session"
	"github.com/maniacs-db/drizzle-sub000/internal/types"
	"golang.org/x/sync/errgroup"
)

type BenchOptions struct {
	Sessions int
	// Rows inserted by each session, one statement per session.
	Rows int
	Vars session.Variables
}

type BenchResult struct {
	Sessions        int           `json:"sessions"`
	TotalRows       int           `json:"totalRows"`
	TotalDuration   time.Duration `json:"totalDuration"`
	RowsPerSecond   int           `json:"rowsPerSecond"`
	DuplicateValues int           `json:"duplicateValues"`
}

// Bench inserts rows concurrently from many sessions and checks
// that every generated auto increment value is unique.
func Bench(ctx context.Context, db *DB, opts BenchOptions, w io.Writer) (*BenchResult, error) {
	col := db.Table.AutoIncrementColumn
	if col < 0 {
		return nil, errors.Errorf("table %q has no auto increment column", db.Table.Name)
	}

	var ids session.QueryIDCounter
	values := make([][]int64, opts.Sessions)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Sessions; i++ {
		i := i
		g.Go(func() error {
			sess := session.New(session.Options{Vars: opts.Vars, QueryIDs: &ids, Replicator: db.Replicator()})
			v, err := benchSession(ctx, db, sess, opts.Rows)
			values[i] = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := BenchResult{
		Sessions:      opts.Sessions,
		TotalRows:     opts.Sessions * opts.Rows,
		TotalDuration: time.Since(start),
	}
	if res.TotalDuration > 0 {
		res.RowsPerSecond = int(float64(res.TotalRows) / res.TotalDuration.Seconds())
	}

	seen := make(map[int64]struct{}, res.TotalRows)
	for _, vs := range values {
		for _, v := range vs {
			if _, ok := seen[v]; ok {
				res.DuplicateValues++
			}
			seen[v] = struct{}{}
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return &res, enc.Encode(&res)
}

func benchSession(ctx context.Context, db *DB, sess *session.Session, n int) ([]int64, error) {
	h, err := db.Engine.NewHandler()
	if err != nil {
		return nil, err
	}
	c, err := cursor.Open(sess, h, db.Table, engine.ReadWrite)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if _, err := sess.BeginStatement(replication.KindInsert, replication.ReplaceInferred); err != nil {
		return nil, err
	}

	col := db.Table.AutoIncrementColumn
	values := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.CombineErrors(err, sess.AbortStatement())
		}

		r := row.New(make([]types.Value, len(db.Table.Columns))...)
		for j := range r.Values {
			r.Values[j] = types.NewNullValue()
		}
		if err := c.InsertRow(r); err != nil {
			return nil, errors.CombineErrors(err, sess.AbortStatement())
		}

		x, _ := types.AsInt64(r.Values[col])
		values = append(values, x)
	}

	return values, sess.EndStatement()
}
