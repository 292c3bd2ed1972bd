// Command portalctl is a command-line client of the SchoolHub gateway. The process is a
// single client context whose credential persists in a local file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command failure to callers
	}
}
