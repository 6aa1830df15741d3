// Package main implements the tasknotify command: the notification engine's
// HTTP server plus operator subcommands for migrations, one-off reminder
// scans and queue drains, and credential management.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
