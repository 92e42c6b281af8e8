// Command feedsync simulates and inspects the activity feed engine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/feedsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Subcommands silence cobra's own error printing.
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
