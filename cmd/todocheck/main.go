// Command todocheck runs end-to-end checks against TodoMVC applications.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/todocheck/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
