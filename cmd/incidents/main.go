package main

import (
	"fmt"
	"os"

	"norloworld/internal/cli"
	"norloworld/internal/log"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentCLI, os.Stderr)

	root := cli.NewRootCommand(cli.SnapshotLoader(cfg, logger))
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
