// Command condop runs condition-driven scenes from a YAML configuration.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/condop/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
