// Command watchmen is the CLI client for the watchmen supervisor
// daemon: one subcommand per admin operation, talking to whichever
// transport the loaded watchmen.toml names as its default engine.
package main

import (
	"os"

	"github.com/ahriroot/watchmen/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
