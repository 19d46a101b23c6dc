// Package main provides the entry point for the vibemcp CLI.
package main

import (
	"os"

	"github.com/vibecoding/vibemcp/cmd/vibemcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
