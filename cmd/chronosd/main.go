// Package main is chronosd's entry point: builds the cobra root command
// and executes it.
package main

import (
	"fmt"
	"os"

	"github.com/jholhewres/chronos/cmd/chronosd/commands"
)

// version is injected at build time via ldflags.
var version = "dev"

func main() {
	rootCmd := commands.NewRootCmd(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
