// Package monitor implements the periodic tick that drives time-based
// transitions: firing due Scheduled tasks, re-starting Async tasks that
// are in "auto restart", and firing due Periodic tasks. Every status
// transition re-enters through the engine API; the one direct registry
// write is a Periodic task's last_run stamp after a successful start.
//
// A single ticker goroutine walks the full task set once per tick,
// dispatches per-task-type handling, and logs but never panics on a
// single task's failure.
package monitor

import (
	"context"
	"time"

	"github.com/ahriroot/watchmen/internal/engine"
	"github.com/ahriroot/watchmen/internal/logging"
	"github.com/ahriroot/watchmen/internal/registry"
	"github.com/ahriroot/watchmen/internal/restart"
	"github.com/ahriroot/watchmen/internal/task"
)

// TickInterval is the fixed cadence of the monitor loop.
const TickInterval = 3 * time.Second

// Loop owns the ticker goroutine.
type Loop struct {
	eng      *engine.Engine
	reg      *registry.Registry
	restarts *restart.Tracker
	log      *logging.Logger
	logPath  string
}

// New builds a Loop bound to eng's registry and restart tracker. logPath, if
// non-empty, is the daemon's own log file, checked for rotation on every
// tick alongside the scheduled/async/periodic task sweeps.
func New(eng *engine.Engine, reg *registry.Registry, restarts *restart.Tracker, log *logging.Logger, logPath string) *Loop {
	return &Loop{eng: eng, reg: reg, restarts: restarts, log: log, logPath: logPath}
}

// Run blocks, ticking every TickInterval until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.tick(now)
		}
	}
}

// tick walks every registered task once, dispatching by kind. It takes a
// snapshot of ids+kinds+statuses under the read lock, then calls engine
// operations (which take the write lock internally) outside of it, so a
// slow spawn on one task never blocks the rest of the tick.
func (l *Loop) tick(now time.Time) {
	if l.logPath != "" {
		if err := logging.RotateIfNeeded(l.logPath); err != nil {
			l.log.Warnf("monitor: log rotation failed: %v", err)
		}
	}

	type candidate struct {
		id     int64
		kind   task.Kind
		status task.Status
		t      *task.Task
	}
	var due []candidate
	l.reg.WithReadLock(func(entries map[int64]*registry.Process) {
		for id, p := range entries {
			due = append(due, candidate{id: id, kind: p.Task.TaskType.Kind, status: p.Task.Status, t: p.Task.Clone()})
		}
	})

	for _, c := range due {
		switch c.kind {
		case task.KindScheduled:
			l.tickScheduled(c.t, now)
		case task.KindAsync:
			l.tickAsync(c.id, c.status, now)
		case task.KindPeriodic:
			l.tickPeriodic(c.t, now)
		}
	}
}

func (l *Loop) tickScheduled(t *task.Task, now time.Time) {
	if t.Status != task.StatusWaiting {
		return
	}
	s := t.TaskType.Scheduled
	if s == nil || !scheduledDue(s, now, TickInterval) {
		return
	}
	if _, err := l.eng.Start(task.Flag{ID: t.ID}); err != nil {
		l.log.Warnf("monitor: scheduled task %d fire failed: %v", t.ID, err)
	}
}

// scheduledDue reports whether every present field of s matches now, with
// absent fields treated as wildcards ("any"). With no second component,
// every tick whose present fields match is due; a pinned second component
// is checked against a (now-tick, now] window so a schedule is not missed
// between two tick samples.
func scheduledDue(s *task.ScheduledTask, now time.Time, tick time.Duration) bool {
	if s.Year != nil && *s.Year != now.Year() {
		return false
	}
	if s.Month != nil && *s.Month != int(now.Month()) {
		return false
	}
	if s.Day != nil && *s.Day != now.Day() {
		return false
	}
	if s.Hour != nil && *s.Hour != now.Hour() {
		return false
	}
	if s.Minute != nil && *s.Minute != now.Minute() {
		return false
	}
	if s.Second == nil {
		return true
	}
	windowStart := now.Add(-tick)
	for d := 0; d <= int(tick.Seconds())+1; d++ {
		candidate := now.Add(-time.Duration(d) * time.Second)
		if !candidate.After(windowStart) {
			break
		}
		if candidate.Second() == *s.Second {
			return true
		}
	}
	return false
}

func (l *Loop) tickAsync(id int64, status task.Status, now time.Time) {
	if status != task.StatusAutoRestart {
		return
	}
	if l.restarts.CrashLooping(id) {
		l.log.Warnf("monitor: task %d is crash-looping, withholding auto-restart", id)
		return
	}
	if !l.restarts.Ready(id, now) {
		// Still inside the backoff window opened by the last crash; try
		// again on a later tick instead of hammering the restart.
		return
	}
	if _, err := l.eng.Start(task.Flag{ID: id}); err != nil {
		l.log.Warnf("monitor: auto-restart of task %d failed: %v", id, err)
	}
}

func (l *Loop) tickPeriodic(t *task.Task, now time.Time) {
	p := t.TaskType.Periodic
	if p == nil {
		return
	}
	switch t.Status {
	case task.StatusPaused:
		return
	case task.StatusInterval:
		// eligible below
	case task.StatusExecuting:
		if !p.Sync {
			return
		}
		// sync=true: fire again even though the previous run is still going.
	default:
		return
	}

	nowUnix := now.Unix()
	if nowUnix < p.StartedAfter {
		return
	}
	if nowUnix-p.LastRun < p.Interval {
		return
	}
	if _, err := l.eng.Start(task.Flag{ID: t.ID}); err != nil {
		l.log.Warnf("monitor: periodic task %d tick failed: %v", t.ID, err)
		return
	}
	l.reg.Mutate(t.ID, func(p *registry.Process) {
		if p.Task.TaskType.Periodic != nil {
			p.Task.TaskType.Periodic.LastRun = nowUnix
		}
	})
}
