package commands

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/cmd/cursorctl/dbutil"
	"github.com/urfave/cli/v3"
)

// NewChangelogCommand returns a cli.Command for "cursorctl changelog".
func NewChangelogCommand() *cli.Command {
	cmd := cli.Command{
		Name:        "changelog",
		Usage:       "Outputs the content of a change log",
		UsageText:   `cursorctl changelog [options] path`,
		Description: `The changelog command outputs the statements of a change log, in order.`,
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  "from",
				Value: 1,
				Usage: "Sequence of the first statement to output.",
			},
		},
	}

	cmd.Action = func(ctx context.Context, cmd *cli.Command) error {
		path := cmd.Args().First()
		if path == "" {
			return errors.New(cmd.UsageText)
		}

		return dbutil.DumpChangelog(ctx, path, uint64(cmd.Uint("from")), os.Stdout)
	}

	return &cmd
}
