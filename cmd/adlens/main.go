// Package main is the entry point for the adlens CLI.
package main

import (
	"os"

	"github.com/adlens/adlens/cmd/adlens/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
