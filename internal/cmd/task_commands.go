package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahriroot/watchmen/internal/dispatch"
	"github.com/ahriroot/watchmen/internal/task"
)

func newTaskCommand(use, short string, op dispatch.Opcode) *cobra.Command {
	src := &taskSourceFlags{}
	c := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := src.resolve()
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				return fmt.Errorf("no tasks resolved from the given selector")
			}
			var failed int
			for _, t := range tasks {
				resp, err := send(dispatch.Request{Command: op, Task: t})
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", taskLabel(t), err)
					failed++
					continue
				}
				if resp.Code != dispatch.CodeOK {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", taskLabel(t), resp.Msg)
					failed++
					continue
				}
				fmt.Println(resp.Msg)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tasks failed", failed, len(tasks))
			}
			return nil
		},
	}
	src.register(c)
	return c
}

func taskLabel(t *task.Task) string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("task %d", t.ID)
}

var runCmd = newTaskCommand("run", "Add and immediately start a task", dispatch.OpRun)
var addCmd = newTaskCommand("add", "Add a task without starting it", dispatch.OpAdd)
var reloadCmd = newTaskCommand("reload", "Replace an existing task's definition", dispatch.OpReload)

func init() {
	rootCmd.AddCommand(runCmd, addCmd, reloadCmd)
}
