// Command peerdb runs statements, selects and paged browsing against the
// databases described by a configuration file.
package main

import (
	"errors"
	"fmt"
	"os"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/peerdb/internal/cli"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = Version
	if err := cmd.Execute(); err != nil {
		// Commands report their own failures; print the rest (usage errors).
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
