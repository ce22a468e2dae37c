// Package task defines the Task data model: the record describing one
// managed process, its execution policy, and its mutable runtime fields.
package task

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Status is one of the finite set of labels a Task can carry at rest.
type Status string

// The full status domain. Not every status is reachable from every
// TaskType — see the transition matrices in the supervision engine.
const (
	StatusAdded       Status = "added"
	StatusWaiting     Status = "waiting"
	StatusProcessing  Status = "processing"
	StatusRunning     Status = "running"
	StatusAutoRestart Status = "auto restart"
	StatusStopped     Status = "stopped"
	StatusInterval    Status = "interval"
	StatusExecuting   Status = "executing"
	StatusPaused      Status = "paused"
)

// Kind discriminates which TaskType variant a Task carries.
type Kind string

const (
	KindScheduled Kind = "scheduled"
	KindAsync     Kind = "async"
	KindPeriodic  Kind = "periodic"
	KindNone      Kind = "none"
)

// ScheduledTask fires once when wall-clock matches every present field.
// An absent field means "any" for that component.
type ScheduledTask struct {
	Year   *int `json:"year,omitempty"`
	Month  *int `json:"month,omitempty"`
	Day    *int `json:"day,omitempty"`
	Hour   *int `json:"hour,omitempty"`
	Minute *int `json:"minute,omitempty"`
	Second *int `json:"second,omitempty"`
}

// AsyncTask is a long-running daemon process with optional bounded restart.
type AsyncTask struct {
	// MaxRestart bounds auto-restart attempts. Nil means "never auto-restart".
	MaxRestart *int `json:"max_restart,omitempty"`
	// HasRestart counts restarts performed so far. Invariant: HasRestart <= *MaxRestart.
	HasRestart int   `json:"has_restart"`
	StartedAt  int64 `json:"started_at,omitempty"`
	StoppedAt  int64 `json:"stopped_at,omitempty"`
}

// PeriodicTask executes Command repeatedly every Interval seconds.
type PeriodicTask struct {
	StartedAfter int64 `json:"started_after"`
	Interval     int64 `json:"interval"`
	LastRun      int64 `json:"last_run,omitempty"`
	// Sync=true re-fires even while the previous execution is still running;
	// Sync=false skips the tick if the previous run has not finished.
	Sync bool `json:"sync,omitempty"`
}

// TaskType is the tagged union of execution policies. Exactly one of the
// pointer fields matching Kind is populated.
type TaskType struct {
	Kind      Kind           `json:"kind"`
	Scheduled *ScheduledTask `json:"scheduled,omitempty"`
	Async     *AsyncTask     `json:"async,omitempty"`
	Periodic  *PeriodicTask  `json:"periodic,omitempty"`
}

// Task is a user-declared unit of work: a command line bound to a
// supervision policy, plus the runtime fields the engine mutates.
type Task struct {
	ID      int64             `json:"id"`
	Name    string            `json:"name"`
	Group   string            `json:"group,omitempty"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Dir     string            `json:"dir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// Stdin, if true, opens a pipe the engine can write to via write().
	Stdin bool `json:"stdin,omitempty"`
	// Stdout/Stderr: nil = discard, empty string = pipe, non-empty = file path.
	Stdout *string `json:"stdout,omitempty"`
	Stderr *string `json:"stderr,omitempty"`

	CreatedAt int64    `json:"created_at"`
	TaskType  TaskType `json:"task_type"`

	// Runtime fields, mutated only by the supervision engine.
	PID    *int    `json:"pid,omitempty"`
	Status Status  `json:"status,omitempty"`
	Code   *int    `json:"code,omitempty"`
}

// Clone returns a deep-enough copy safe to hand to callers outside the
// registry lock (env map and args slice are copied; TaskType sub-structs
// are copied by value through their pointee).
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Args != nil {
		c.Args = append([]string(nil), t.Args...)
	}
	if t.Env != nil {
		c.Env = make(map[string]string, len(t.Env))
		for k, v := range t.Env {
			c.Env[k] = v
		}
	}
	if t.PID != nil {
		pid := *t.PID
		c.PID = &pid
	}
	if t.Code != nil {
		code := *t.Code
		c.Code = &code
	}
	switch t.TaskType.Kind {
	case KindScheduled:
		if t.TaskType.Scheduled != nil {
			s := *t.TaskType.Scheduled
			c.TaskType.Scheduled = &s
		}
	case KindAsync:
		if t.TaskType.Async != nil {
			a := *t.TaskType.Async
			c.TaskType.Async = &a
		}
	case KindPeriodic:
		if t.TaskType.Periodic != nil {
			p := *t.TaskType.Periodic
			c.TaskType.Periodic = &p
		}
	}
	return &c
}

// ExpandHome replaces a leading "$HOME" or "~/" in s with the invoking
// user's home directory. Used for config paths, stdio paths, and task
// args.
func ExpandHome(s string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return s
	}
	if strings.HasPrefix(s, "$HOME") {
		return home + strings.TrimPrefix(s, "$HOME")
	}
	if strings.HasPrefix(s, "~/") {
		return filepath.Join(home, strings.TrimPrefix(s, "~/"))
	}
	return s
}

// ExpandEnv expands $HOME/~ in the task's args, stdout, and stderr fields
// in place. Called by the engine on add() before the task is registered.
func (t *Task) ExpandEnv() {
	for i, a := range t.Args {
		t.Args[i] = ExpandHome(a)
	}
	if t.Stdout != nil {
		s := ExpandHome(*t.Stdout)
		t.Stdout = &s
	}
	if t.Stderr != nil {
		s := ExpandHome(*t.Stderr)
		t.Stderr = &s
	}
	if t.Dir != "" {
		t.Dir = ExpandHome(t.Dir)
	}
}

// Validate checks task-type sub-fields against the range invariants from
// the task-file schema (month 1-12, day 1-31, hour 0-23, minute/second
// 0-59, year >= 1970, periodic interval > 0).
func (t *Task) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if t.Command == "" {
		return fmt.Errorf("task command is required")
	}
	switch t.TaskType.Kind {
	case KindScheduled:
		s := t.TaskType.Scheduled
		if s == nil {
			return fmt.Errorf("scheduled task missing schedule fields")
		}
		if s.Year != nil && *s.Year < 1970 {
			return fmt.Errorf("invalid year: %d", *s.Year)
		}
		if s.Month != nil && (*s.Month < 1 || *s.Month > 12) {
			return fmt.Errorf("invalid month: %d", *s.Month)
		}
		if s.Day != nil && (*s.Day < 1 || *s.Day > 31) {
			return fmt.Errorf("invalid day: %d", *s.Day)
		}
		if s.Hour != nil && (*s.Hour < 0 || *s.Hour > 23) {
			return fmt.Errorf("invalid hour: %d", *s.Hour)
		}
		if s.Minute != nil && (*s.Minute < 0 || *s.Minute > 59) {
			return fmt.Errorf("invalid minute: %d", *s.Minute)
		}
		if s.Second != nil && (*s.Second < 0 || *s.Second > 59) {
			return fmt.Errorf("invalid second: %d", *s.Second)
		}
	case KindAsync:
		if t.TaskType.Async == nil {
			t.TaskType.Async = &AsyncTask{}
		}
		a := t.TaskType.Async
		if a.MaxRestart != nil && a.HasRestart > *a.MaxRestart {
			return fmt.Errorf("has_restart %d exceeds max_restart %d", a.HasRestart, *a.MaxRestart)
		}
	case KindPeriodic:
		p := t.TaskType.Periodic
		if p == nil {
			return fmt.Errorf("periodic task missing interval fields")
		}
		if p.Interval <= 0 {
			return fmt.Errorf("invalid interval: %d", p.Interval)
		}
		if p.StartedAfter < 0 {
			return fmt.Errorf("invalid started_after: %d", p.StartedAfter)
		}
	case KindNone, "":
		t.TaskType.Kind = KindNone
	default:
		return fmt.Errorf("invalid task_type: %s", t.TaskType.Kind)
	}
	return nil
}

// InitialStatus returns the status a task is given on add(): waiting for
// Scheduled, added for everything else.
func (t *Task) InitialStatus() Status {
	if t.TaskType.Kind == KindScheduled {
		return StatusWaiting
	}
	return StatusAdded
}
