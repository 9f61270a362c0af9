// Command journal starts the voice journal pipeline server: a Cobra CLI
// wrapping the "serve" subcommand that wires the store, job runner, and
// HTTP facade together.
package main

import (
	"fmt"
	"os"

	"github.com/jrnl/voicejournal/cmd"
	"github.com/jrnl/voicejournal/internal/conf"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
