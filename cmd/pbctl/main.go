// Package main provides pbctl, the pbtracker administration tool.
package main

import (
	"os"

	"github.com/pbtracker/pbtracker-server/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
