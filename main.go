package main

import (
	"fmt"
	"os"

	"finot/ingest/cmd/credits"
	"finot/ingest/cmd/ingest"
	"finot/ingest/cmd/root"
)

func init() {
	root.Init()

	root.Cmd.AddCommand(ingest.Cmd)
	root.Cmd.AddCommand(credits.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
