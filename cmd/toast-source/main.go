// Command toast-source is the sourcing worker. It is started by toast build
// with the registration socket and module path as arguments.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/3-lines-studio/toast/internal/sourcing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := sourcing.RunWorker(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}
