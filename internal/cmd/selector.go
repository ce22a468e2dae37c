package cmd

import (
	"fmt"

	"github.com/ahriroot/watchmen/internal/task"
)

// selectorFlags holds the -i/-n/-m/-g flags shared by every command that
// addresses existing tasks.
type selectorFlags struct {
	id    int64
	name  string
	group string
	mat   bool
}

func (s *selectorFlags) register(flags interface {
	Int64VarP(p *int64, name, shorthand string, value int64, usage string)
	StringVarP(p *string, name, shorthand string, value string, usage string)
	BoolVarP(p *bool, name, shorthand string, value bool, usage string)
}) {
	flags.Int64VarP(&s.id, "id", "i", 0, "select task by id")
	flags.StringVarP(&s.name, "name", "n", "", "select task by name")
	flags.StringVarP(&s.group, "group", "g", "", "select tasks by group")
	flags.BoolVarP(&s.mat, "mat", "m", false, "treat name/group as a regular expression")
}

func (s *selectorFlags) toFlag() (task.Flag, error) {
	f := task.Flag{ID: s.id, Name: s.name, Group: s.group, Mat: s.mat}
	if f.Empty() {
		return f, fmt.Errorf("one of -i, -n, or -g is required")
	}
	return f, nil
}
