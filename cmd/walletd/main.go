// Package main is the entry point for the walletd daemon.
package main

import (
	"os"

	"github.com/eigenix/walletd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
