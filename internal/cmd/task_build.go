package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahriroot/watchmen/internal/config"
	"github.com/ahriroot/watchmen/internal/task"
)

// taskSourceFlags holds the -f/-p/-r (file/directory/recursive-pattern)
// and inline -n/-c/-a/-d/-e/-i/-o/-w flags shared by run/add/reload.
type taskSourceFlags struct {
	file      string
	dir       string
	pattern   string
	recursive bool

	name    string
	command string
	args    []string
	wd      string
	env     []string
	stdin   bool
	stdout  string
	stderr  string
	group   string
}

func (t *taskSourceFlags) register(c *cobra.Command) {
	f := c.Flags()
	f.StringVarP(&t.file, "file", "f", "", "load task(s) from a TOML/INI file")
	f.StringVarP(&t.dir, "path", "p", "", "load task(s) from every matching file in a directory")
	f.StringVarP(&t.pattern, "regex", "r", `\.(toml|ini)$`, "file name pattern used with -p")
	f.BoolVar(&t.recursive, "recursive", false, "recurse into subdirectories with -p")

	f.StringVarP(&t.name, "name", "n", "", "inline task name")
	f.StringVarP(&t.command, "command", "c", "", "inline task command")
	f.StringArrayVarP(&t.args, "arg", "a", nil, "inline task argument (repeatable)")
	f.StringVarP(&t.wd, "dir", "d", "", "inline task working directory")
	f.StringArrayVarP(&t.env, "env", "e", nil, "inline task env var key=value (repeatable)")
	f.BoolVarP(&t.stdin, "stdin", "i", false, "inline task accepts stdin")
	f.StringVarP(&t.stdout, "stdout", "o", "", "inline task stdout file path (unset or empty discards output)")
	f.StringVarP(&t.stderr, "stderr", "w", "", "inline task stderr file path (unset or empty discards output)")
	f.StringVarP(&t.group, "group", "g", "", "inline task group")
}

// resolve returns the tasks named by whichever source was supplied:
// -f a single file, -p a directory (optionally recursive), or the
// inline -n/-c/... flags describing exactly one task.
func (t *taskSourceFlags) resolve() ([]*task.Task, error) {
	switch {
	case t.file != "":
		return config.LoadTaskFile(t.file)
	case t.dir != "":
		files, err := config.DiscoverTaskFiles(t.dir, t.pattern, t.recursive)
		if err != nil {
			return nil, err
		}
		var out []*task.Task
		for _, f := range files {
			tasks, err := config.LoadTaskFile(f)
			if err != nil {
				return nil, err
			}
			out = append(out, tasks...)
		}
		return out, nil
	case t.name != "" || t.command != "":
		return []*task.Task{t.inlineTask()}, nil
	default:
		return nil, fmt.Errorf("one of -f, -p, or -n/-c is required")
	}
}

func (t *taskSourceFlags) inlineTask() *task.Task {
	out := &task.Task{
		Name:      t.name,
		Group:     t.group,
		Command:   t.command,
		Args:      t.args,
		Dir:       t.wd,
		Stdin:     t.stdin,
		CreatedAt: time.Now().Unix(),
		TaskType:  task.TaskType{Kind: task.KindAsync, Async: &task.AsyncTask{}},
	}
	if len(t.env) > 0 {
		out.Env = make(map[string]string, len(t.env))
		for _, kv := range t.env {
			for i := 0; i < len(kv); i++ {
				if kv[i] == '=' {
					out.Env[kv[:i]] = kv[i+1:]
					break
				}
			}
		}
	}
	if t.stdout != "" {
		out.Stdout = &t.stdout
	}
	if t.stderr != "" {
		out.Stderr = &t.stderr
	}
	return out
}
