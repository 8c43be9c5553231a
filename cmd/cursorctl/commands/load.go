package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/maniacs-db/drizzle-sub000/cmd/cursorctl/dbutil"
	"github.com/urfave/cli/v3"
)

// NewLoadCommand returns a cli.Command for "cursorctl load".
func NewLoadCommand() *cli.Command {
	cmd := cli.Command{
		Name:      "load",
		Usage:     "Insert JSON rows into a table",
		UsageText: `cursorctl load [options] [file]`,
		Description: `The load command reads one JSON object per line and inserts it in the table,
in a single statement. Missing auto increment values are generated.

$ echo '{"name": "foo"}' | cursorctl load -p mydb -s "id:bigint:autoinc,name:text" -i "pk=id:unique"

Every inserted row can be written to a change log with --changelog.`,
		Flags: append(tableFlags(),
			&cli.StringFlag{
				Name:  "changelog",
				Usage: "Path of the change log to append the inserted rows to",
			},
			&cli.UintFlag{
				Name:    "rows",
				Aliases: []string{"n"},
				Usage:   "Expected number of rows, used to size the first auto increment reservation",
			},
		),
	}

	cmd.Action = func(ctx context.Context, cmd *cli.Command) error {
		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		var r io.Reader = os.Stdin
		if path := cmd.Args().First(); path != "" {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		res, err := dbutil.LoadJSON(ctx, db, r, dbutil.LoadOptions{
			Rows: uint64(cmd.Uint("rows")),
			Vars: variables(cmd),
		})
		if err != nil {
			return err
		}

		fmt.Printf("%d rows inserted, first insert id %d, %d warnings\n", res.Rows, res.FirstInsertID, res.Warnings)
		return nil
	}

	return &cmd
}
