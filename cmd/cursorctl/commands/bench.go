package commands

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/cmd/cursorctl/dbutil"
	"github.com/urfave/cli/v3"
)

// NewBenchCommand returns a cli.Command for "cursorctl bench".
func NewBenchCommand() *cli.Command {
	cmd := cli.Command{
		Name:      "bench",
		Usage:     "Insert rows from concurrent sessions",
		UsageText: `cursorctl bench [options]`,
		Description: `The bench command opens concurrent sessions inserting rows in the same table
and checks that every generated auto increment value is unique.

$ cursorctl bench -c 16 -n 1000 -s "id:bigint:autoinc" -i "pk=id:unique"
{
  "sessions": 16,
  "totalRows": 16000,
  ...
}`,
		Flags: append(tableFlags(),
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"c"},
				Value:   4,
				Usage:   "Number of concurrent sessions.",
			},
			&cli.IntFlag{
				Name:    "number",
				Aliases: []string{"n"},
				Value:   100,
				Usage:   "Number of rows inserted by each session.",
			},
			&cli.StringFlag{
				Name:  "changelog",
				Usage: "Path of the change log to append the inserted rows to",
			},
		),
	}

	cmd.Action = func(ctx context.Context, cmd *cli.Command) error {
		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		res, err := dbutil.Bench(ctx, db, dbutil.BenchOptions{
			Sessions: int(cmd.Int("concurrency")),
			Rows:     int(cmd.Int("number")),
			Vars:     variables(cmd),
		}, os.Stdout)
		if err != nil {
			return err
		}
		if res.DuplicateValues > 0 {
			return errors.Errorf("%d duplicate auto increment values", res.DuplicateValues)
		}
		return nil
	}

	return &cmd
}
