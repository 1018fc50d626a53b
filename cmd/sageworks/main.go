// Package main provides the SageWorks command-line interface.
package main

import (
	"os"

	"github.com/sageworks-ml/sageworks/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
