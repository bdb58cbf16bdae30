// cellgrid is the command line interface to the formula engine.
package main

import (
	"fmt"
	"os"

	"github.com/cellgrid/cellgrid/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
