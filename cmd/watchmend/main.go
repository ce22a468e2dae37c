// Command watchmend is the watchmen supervisor daemon: it loads a
// watchmen.toml, boots the supervision engine from its cache file, and
// serves admin requests on every transport named in watchmen.engines
// until it receives SIGINT or SIGTERM.
package main

import (
	"fmt"
	"os"

	"github.com/ahriroot/watchmen/internal/cmd"
)

func main() {
	cfgPath := os.Getenv("WATCHMEN_CONFIG")
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	if cfgPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "watchmend: cannot resolve home directory:", err)
			os.Exit(1)
		}
		cfgPath = home + "/.watchmen/watchmen.toml"
	}

	if err := cmd.RunDaemon(cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "watchmend:", err)
		os.Exit(1)
	}
}
