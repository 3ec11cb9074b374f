// Command flux drives counter stores, runs scenario files and reads journals.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/flux/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
