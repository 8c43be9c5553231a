package commands

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/cmd/cursorctl/dbutil"
	"github.com/urfave/cli/v3"
)

// NewScanCommand returns a cli.Command for "cursorctl scan".
func NewScanCommand() *cli.Command {
	cmd := cli.Command{
		Name:      "scan",
		Usage:     "Read ranges of an index",
		UsageText: `cursorctl scan [options] index [range...]`,
		Description: `The scan command reads every range of an index with a multi-range read
and outputs the rows, prefixed by their range. Ranges apply to the first
column of the index:

	v       rows equal to v
	lo..hi  rows between lo and hi, inclusive
	lo..    rows greater than or equal to lo
	..hi    rows lower than or equal to hi

Without ranges, the whole index is read.

$ cursorctl scan -p mydb -s "id:bigint:autoinc,age:int" -i "age_idx=age" age_idx 10 20..30`,
		Flags: append(tableFlags(),
			&cli.BoolFlag{
				Name:  "sorted",
				Usage: "Return the rows of each range in index order",
				Value: true,
			},
			&cli.BoolFlag{
				Name:    "estimate",
				Aliases: []string{"e"},
				Usage:   "Output the estimated number of rows and cost first",
			},
		),
	}

	cmd.Action = func(ctx context.Context, cmd *cli.Command) error {
		index := cmd.Args().First()
		if index == "" {
			return errors.New(cmd.UsageText)
		}

		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		return dbutil.Scan(ctx, db, dbutil.ScanOptions{
			Index:    index,
			Ranges:   cmd.Args().Tail(),
			Sorted:   cmd.Bool("sorted"),
			Estimate: cmd.Bool("estimate"),
		}, os.Stdout)
	}

	return &cmd
}
