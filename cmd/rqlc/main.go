// Command rqlc compiles RQL queries to SQL from a YAML schema and rule sets.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nlstn/go-rql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
