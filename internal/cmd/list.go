package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ahriroot/watchmen/internal/dispatch"
	"github.com/ahriroot/watchmen/internal/task"
)

var listSelector = &selectorFlags{}
var listFull bool
var listCompact bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		var flagPtr *task.Flag
		if f, err := listSelector.toFlag(); err == nil {
			flagPtr = &f
		}
		resp, err := send(dispatch.Request{Command: dispatch.OpList, Flag: flagPtr})
		if err != nil {
			return err
		}
		if resp.Code != dispatch.CodeOK {
			return fmt.Errorf("%s", resp.Msg)
		}
		tasks, err := decodeTaskList(resp.Data)
		if err != nil {
			return err
		}
		return renderTasks(tasks)
	},
}

func decodeTaskList(data any) ([]*task.Task, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var tasks []*task.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("decoding task list: %w", err)
	}
	return tasks, nil
}

func renderTasks(tasks []*task.Task) error {
	// Piped output (e.g. into a script or log) gets the one-line-per-task
	// form regardless of -l, since a tabwriter table is meant for a TTY.
	compact := listCompact || !term.IsTerminal(int(os.Stdout.Fd()))
	if compact {
		for _, t := range tasks {
			fmt.Printf("%d\t%s\t%s\n", t.ID, t.Name, t.Status)
		}
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	if listFull {
		fmt.Fprintln(w, "ID\tNAME\tGROUP\tKIND\tSTATUS\tPID\tCODE\tCOMMAND")
		for _, t := range tasks {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.Name, t.Group, t.TaskType.Kind, t.Status, pidStr(t), codeStr(t), t.Command)
		}
	} else {
		fmt.Fprintln(w, "ID\tNAME\tSTATUS")
		for _, t := range tasks {
			fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Name, t.Status)
		}
	}
	return w.Flush()
}

func pidStr(t *task.Task) string {
	if t.PID == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *t.PID)
}

func codeStr(t *task.Task) string {
	if t.Code == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *t.Code)
}

func init() {
	listSelector.register(listCmd.Flags())
	listCmd.Flags().BoolVarP(&listFull, "full", "o", false, "show full detail")
	listCmd.Flags().BoolVarP(&listCompact, "compact", "l", false, "compact one-line-per-task output")
	rootCmd.AddCommand(listCmd)
}
