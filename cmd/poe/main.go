// Command poe is the proof-of-existence claim registry CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/poe/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "poe: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
