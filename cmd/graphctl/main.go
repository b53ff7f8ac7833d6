// Command graphctl ingests papers into the knowledge graph and asks it
// questions from the terminal.
//
// Usage:
//
//	graphctl ingest <pdf>...
//	graphctl ask <question> [--trace] [--top-k n]
//	graphctl communities [--rebuild]
//
// Configuration is read from the environment and .env, like the server.
package main

import (
	"fmt"
	"os"

	"github.com/scilab-ai/scilab/backend/cmd/graphctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
