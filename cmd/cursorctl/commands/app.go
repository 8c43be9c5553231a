package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/maniacs-db/drizzle-sub000/cmd/cursorctl/dbutil"
	"github.com/maniacs-db/drizzle-sub000/internal/session"
	"github.com/urfave/cli/v3"
)

// NewApp creates the cursorctl CLI app.
func NewApp() *cli.Command {
	app := &cli.Command{
		Name:                  "cursorctl",
		Usage:                 "Load, scan and benchmark tables through storage engine cursors",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewLoadCommand(),
			NewScanCommand(),
			NewBenchCommand(),
			NewChangelogCommand(),
		},
	}

	// inject a context canceled on interrupt into every command
	for i := range app.Commands {
		action := app.Commands[i].Action
		app.Commands[i].Action = func(ctx context.Context, cmd *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return action(ctx, cmd)
		}
	}

	return app
}

// flags shared by the commands opening a table.
func tableFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "path",
			Aliases: []string{"p"},
			Usage:   "Path of the Pebble database to open or create. If not specified, the table is in memory",
		},
		&cli.StringFlag{
			Name:  "table",
			Value: "t",
			Usage: "Name of the table",
		},
		&cli.StringFlag{
			Name:     "schema",
			Aliases:  []string{"s"},
			Required: true,
			Usage:    "Columns of the table, as a list of name:type[:autoinc]",
		},
		&cli.StringSliceFlag{
			Name:    "index",
			Aliases: []string{"i"},
			Usage:   "Index of the table, as name=col[+col][:unique]. Can be repeated",
		},
		&cli.UintFlag{
			Name:  "auto-increment-increment",
			Value: 1,
			Usage: "Interval between generated values",
		},
		&cli.UintFlag{
			Name:  "auto-increment-offset",
			Value: 1,
			Usage: "First generated value",
		},
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "Fail instead of truncating values out of range",
		},
	}
}

func openDB(cmd *cli.Command) (*dbutil.DB, error) {
	return dbutil.OpenDB(dbutil.Options{
		Path:      cmd.String("path"),
		Table:     cmd.String("table"),
		Schema:    cmd.String("schema"),
		Indexes:   cmd.StringSlice("index"),
		Changelog: cmd.String("changelog"),
	})
}

func variables(cmd *cli.Command) session.Variables {
	return session.Variables{
		AutoIncrementIncrement: uint64(cmd.Uint("auto-increment-increment")),
		AutoIncrementOffset:    uint64(cmd.Uint("auto-increment-offset")),
		StrictMode:             cmd.Bool("strict"),
	}
}
