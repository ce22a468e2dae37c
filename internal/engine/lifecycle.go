// Lifecycle operations: start/stop/restart and the per-TaskType child-
// exit transition logic. Spawning and waiting always happen off the
// registry lock; only the before/after state reads and writes take it.
package engine

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ahriroot/watchmen/internal/apperr"
	"github.com/ahriroot/watchmen/internal/launcher"
	"github.com/ahriroot/watchmen/internal/registry"
	"github.com/ahriroot/watchmen/internal/task"
)

// Start spawns every task matched by flag that is eligible to start.
func (e *Engine) Start(flag task.Flag) (string, error) {
	ids, err := e.reg.Select(flag)
	if err != nil {
		return "", apperr.Validationf("%v", err)
	}
	if len(ids) == 0 {
		return "", apperr.NotFoundf("no task matches selector")
	}
	var started []int64
	var lastErr error
	for _, id := range ids {
		if err := e.startOne(id); err != nil {
			lastErr = err
			continue
		}
		started = append(started, id)
	}
	if len(started) == 0 && lastErr != nil {
		return "", lastErr
	}
	return fmt.Sprintf("started: %s", idList(started)), nil
}

// Stop kills the process backing every matched task currently running or
// auto-restarting. persist controls whether a cache write is issued here
// (callers that chain further mutation, e.g. restart, pass false and
// issue one write at the end).
func (e *Engine) Stop(flag task.Flag, persist bool) (string, error) {
	ids, err := e.reg.Select(flag)
	if err != nil {
		return "", apperr.Validationf("%v", err)
	}
	if len(ids) == 0 {
		return "", apperr.NotFoundf("no task matches selector")
	}
	var stopped []int64
	for _, id := range ids {
		if err := e.stopOne(id, false); err != nil {
			continue
		}
		stopped = append(stopped, id)
	}
	if len(stopped) == 0 {
		return "", apperr.WrongStatef("no matched task was running")
	}
	if persist {
		e.scheduleCacheWrite()
	}
	return fmt.Sprintf("stopped: %s", idList(stopped)), nil
}

// Restart stops then starts every matched task, with a single cache
// write covering both steps.
func (e *Engine) Restart(flag task.Flag) (string, error) {
	ids, err := e.reg.Select(flag)
	if err != nil {
		return "", apperr.Validationf("%v", err)
	}
	if len(ids) == 0 {
		return "", apperr.NotFoundf("no task matches selector")
	}
	var restarted []int64
	for _, id := range ids {
		_ = e.stopOne(id, false)
		e.restarts.Reset(id)
		if err := e.startOne(id); err != nil {
			continue
		}
		restarted = append(restarted, id)
	}
	e.scheduleCacheWrite()
	if len(restarted) == 0 {
		return "", apperr.WrongStatef("no matched task could be restarted")
	}
	return fmt.Sprintf("restarted: %s", idList(restarted)), nil
}

// startOne spawns id's child process per its TaskType and installs the
// monitor goroutine that awaits its exit.
func (e *Engine) startOne(id int64) error {
	p, ok := e.reg.Get(id)
	if !ok {
		return apperr.NotFoundf("task %d not found", id)
	}
	snapshot := p.Task.Clone()

	switch snapshot.TaskType.Kind {
	case task.KindAsync:
		if snapshot.Status == task.StatusRunning {
			return apperr.WrongStatef("task %d is already running", id)
		}
	case task.KindScheduled:
		if snapshot.Status == task.StatusProcessing {
			return apperr.WrongStatef("task %d is already processing", id)
		}
	case task.KindPeriodic:
		syncing := snapshot.TaskType.Periodic != nil && snapshot.TaskType.Periodic.Sync
		if snapshot.Status == task.StatusExecuting && !syncing {
			return apperr.WrongStatef("task %d is already executing", id)
		}
	default:
		return apperr.WrongStatef("task %d has no executable task type", id)
	}

	h, err := Launcher(snapshot)
	if err != nil {
		return err
	}

	pid := h.Cmd.Process.Pid
	startStatus := startStatusFor(snapshot.TaskType.Kind)
	e.reg.Mutate(id, func(proc *registry.Process) {
		proc.Task.PID = &pid
		proc.Task.Status = startStatus
		proc.Task.Code = nil
		if proc.Stdin != nil {
			proc.Stdin.Close()
			proc.Stdin = nil
		}
		if h.Stdin != nil {
			proc.Stdin = h.Stdin
		}
		proc.Stdout = nil
		if h.Stdout != nil {
			proc.Stdout = h.Stdout
		}
		proc.Stderr = nil
		if h.Stderr != nil {
			proc.Stderr = h.Stderr
		}
		if proc.Task.TaskType.Kind == task.KindAsync {
			if proc.Task.TaskType.Async == nil {
				proc.Task.TaskType.Async = &task.AsyncTask{}
			}
			proc.Task.TaskType.Async.StartedAt = time.Now().Unix()
		}
		proc.MarkDone()
	})
	e.restarts.RecordStart(id, time.Now())
	e.log.Infof("started task %d (%s), pid %d", id, snapshot.Name, pid)

	go e.awaitExit(id, h)
	return nil
}

func startStatusFor(k task.Kind) task.Status {
	switch k {
	case task.KindScheduled:
		return task.StatusProcessing
	case task.KindPeriodic:
		return task.StatusExecuting
	default:
		return task.StatusRunning
	}
}

// awaitExit blocks on the child's exit (off the registry lock) and then
// runs the per-TaskType transition logic.
func (e *Engine) awaitExit(id int64, h *launcher.Handle) {
	err := h.Cmd.Wait()
	code := exitCode(err)

	p, ok := e.reg.Get(id)
	if !ok {
		return
	}
	kind := p.Task.TaskType.Kind

	switch kind {
	case task.KindAsync:
		e.onAsyncExit(id, code)
	case task.KindScheduled:
		e.onScheduledExit(id, code)
	case task.KindPeriodic:
		e.onPeriodicExit(id, code)
	}

	if done, ok := e.reg.Get(id); ok {
		done.MarkDone()
	}
	e.scheduleCacheWrite()
}

func (e *Engine) onAsyncExit(id int64, code int) {
	var nextStatus task.Status
	e.reg.Mutate(id, func(p *registry.Process) {
		if p.Task.Status != task.StatusRunning {
			// A concurrent stop() already moved this task to "stopped";
			// let that transition stand rather than resurrecting it.
			nextStatus = p.Task.Status
			return
		}
		a := p.Task.TaskType.Async
		if a == nil {
			a = &task.AsyncTask{}
			p.Task.TaskType.Async = a
		}
		a.StoppedAt = time.Now().Unix()
		canRestart := a.MaxRestart != nil && a.HasRestart < *a.MaxRestart
		if canRestart {
			a.HasRestart++
			nextStatus = task.StatusAutoRestart
			e.restarts.NextBackoff(id, time.Now())
		} else {
			nextStatus = task.StatusStopped
		}
		p.Task.Status = nextStatus
		c := code
		p.Task.Code = &c
		p.Task.PID = nil
		if p.Stdin != nil {
			p.Stdin.Close()
			p.Stdin = nil
		}
	})
	if nextStatus == task.StatusStopped {
		e.restarts.Forget(id)
	}
}

func (e *Engine) onScheduledExit(id int64, code int) {
	e.reg.Mutate(id, func(p *registry.Process) {
		if p.Task.Status != task.StatusProcessing {
			return
		}
		p.Task.Status = task.StatusWaiting
		c := code
		p.Task.Code = &c
		p.Task.PID = nil
		if p.Stdin != nil {
			p.Stdin.Close()
			p.Stdin = nil
		}
	})
}

func (e *Engine) onPeriodicExit(id int64, code int) {
	e.reg.Mutate(id, func(p *registry.Process) {
		if p.Task.Status != task.StatusExecuting {
			return
		}
		p.Task.Status = task.StatusInterval
		c := code
		p.Task.Code = &c
		p.Task.PID = nil
		if p.Stdin != nil {
			p.Stdin.Close()
			p.Stdin = nil
		}
	})
}

// stopOne kills id's child process if it has one. persist is currently
// unused here (callers control persistence at the call-site level) and
// kept for symmetry with the public Stop signature.
func (e *Engine) stopOne(id int64, _ bool) error {
	p, ok := e.reg.Get(id)
	if !ok {
		return apperr.NotFoundf("task %d not found", id)
	}
	if !isStoppable(p.Task.Status) {
		return apperr.WrongStatef("task %d is not running", id)
	}
	pid := p.Task.PID
	if pid == nil {
		return apperr.WrongStatef("task %d has no pid", id)
	}

	// Signal the whole process group the launcher put this child in,
	// so a task that forked helpers doesn't leave them orphaned.
	if err := unix.Kill(-*pid, syscall.SIGKILL); err != nil {
		if proc, ferr := os.FindProcess(*pid); ferr == nil {
			_ = proc.Kill()
		}
	}

	stopped := task.StatusStopped
	code := 9
	e.reg.Mutate(id, func(proc *registry.Process) {
		proc.Task.Status = stopped
		proc.Task.Code = &code
		proc.Task.PID = nil
		if proc.Stdin != nil {
			proc.Stdin.Close()
			proc.Stdin = nil
		}
		if proc.Task.TaskType.Kind == task.KindAsync && proc.Task.TaskType.Async != nil {
			proc.Task.TaskType.Async.StoppedAt = time.Now().Unix()
		}
	})
	e.restarts.Forget(id)
	e.log.Infof("stopped task %d", id)
	return nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	type exitStatuser interface{ ExitCode() int }
	if ee, ok := err.(exitStatuser); ok {
		if c := ee.ExitCode(); c >= 0 {
			return c
		}
	}
	return -1
}
