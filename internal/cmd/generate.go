package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ahriroot/watchmen/internal/config"
)

const starterTaskFile = `# watchmen starter task file
[[task]]
id = 1
name = "example"
command = "/bin/echo"
args = ["hello from watchmen"]
kind = "async"
`

var generateCmd = &cobra.Command{
	Use:   "generate <dir>",
	Short: "Emit a starter config file and task file into a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}

		cfgPath := filepath.Join(dir, "watchmen.toml")
		if err := config.SaveDaemon(cfgPath, config.DefaultDaemon()); err != nil {
			return err
		}

		taskPath := filepath.Join(dir, "tasks.toml")
		if err := os.WriteFile(taskPath, []byte(starterTaskFile), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", taskPath, err)
		}

		fmt.Printf("wrote %s and %s\n", cfgPath, taskPath)
		return nil
	},
}
