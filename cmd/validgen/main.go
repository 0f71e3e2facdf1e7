// Command validgen generates validation code from marked declarations in Go
// packages.
//
// Declarations live in files guarded by the "validgen" build tag. Generated
// files are written next to them (or under --output_dir) and carry the
// opposite constraint, so each build sees exactly one of the two.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		os.Exit(1)
	}
}
