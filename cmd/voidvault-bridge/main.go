// Package main provides voidvault-bridge, which connects browser password
// fields and the terminal to the voidvault password generator.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		pterm.Error.Println(err)
		if debugLog != nil {
			debugLog.Errorf("%v", err)
		}
		os.Exit(1)
	}
}
