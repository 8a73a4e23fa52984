// Package main provides the entry point for the topicsearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/topicsearch/cmd/topicsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
