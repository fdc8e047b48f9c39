package main

import (
	"os"

	"github.com/quantfold/analytics/cmd/analytics/commands"
)

// main is the entry point for the analytics CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
