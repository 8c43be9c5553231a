package main

import (
	"context"
	"fmt"
	"os"

	"github.com/maniacs-db/drizzle-sub000/cmd/cursorctl/commands"
)

func main() {
	app := commands.NewApp()

	err := app.Run(context.Background(), os.Args)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stdout, "error: %v\n", err)
		os.Exit(2)
	}
}
