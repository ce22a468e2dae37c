package monitor

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ahriroot/watchmen/internal/engine"
	"github.com/ahriroot/watchmen/internal/logging"
	"github.com/ahriroot/watchmen/internal/registry"
	"github.com/ahriroot/watchmen/internal/restart"
	"github.com/ahriroot/watchmen/internal/task"
)

func intp(i int) *int { return &i }

func TestScheduledDueWildcardFields(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 15, 30, 0, time.UTC)
	s := &task.ScheduledTask{Hour: intp(10), Minute: intp(15)}
	if !scheduledDue(s, now, TickInterval) {
		t.Fatal("expected due: hour and minute match, rest wildcard")
	}
}

func TestScheduledDueMismatchedField(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 15, 30, 0, time.UTC)
	s := &task.ScheduledTask{Hour: intp(11)}
	if scheduledDue(s, now, TickInterval) {
		t.Fatal("expected not due: hour mismatch")
	}
}

func TestScheduledDuePinnedSecondWithinWindow(t *testing.T) {
	// tick fires at :32 covering the (the tick-duration-ago, now] window;
	// a pinned second of :30 two seconds back should still be caught.
	now := time.Date(2026, 7, 30, 10, 15, 32, 0, time.UTC)
	s := &task.ScheduledTask{Second: intp(30)}
	if !scheduledDue(s, now, 3*time.Second) {
		t.Fatal("expected pinned second within the lookback window to be due")
	}
}

func TestScheduledDuePinnedSecondOutsideWindow(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 15, 32, 0, time.UTC)
	s := &task.ScheduledTask{Second: intp(10)}
	if scheduledDue(s, now, 3*time.Second) {
		t.Fatal("expected pinned second outside the lookback window to not be due")
	}
}

func TestScheduledDueNoSecondAlwaysDueOnMatchingMinute(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 15, 0, 0, time.UTC)
	s := &task.ScheduledTask{Minute: intp(15)}
	if !scheduledDue(s, now, TickInterval) {
		t.Fatal("expected due: no second pin means any second within the matching minute")
	}
}

func newTestLoop() (*Loop, *engine.Engine, *registry.Registry) {
	reg := registry.New()
	restarts := restart.New()
	log := logging.New(io.Discard, logging.Debug)
	eng := engine.New(reg, nil, restarts, log)
	return New(eng, reg, restarts, log, ""), eng, reg
}

func TestTickScheduledFiresWhenDue(t *testing.T) {
	l, eng, reg := newTestLoop()
	now := time.Now()
	hour, minute := now.Hour(), now.Minute()
	added, err := eng.Add(&task.Task{
		Name:    "sched",
		Command: "/bin/true",
		TaskType: task.TaskType{Kind: task.KindScheduled, Scheduled: &task.ScheduledTask{
			Hour: &hour, Minute: &minute,
		}},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	l.tickScheduled(added, now)
	view := reg.View(added.ID)
	if view.Status != task.StatusProcessing {
		t.Fatalf("status = %s, want processing", view.Status)
	}
}

func TestTickScheduledSkipsWhenNotWaiting(t *testing.T) {
	l, eng, reg := newTestLoop()
	now := time.Now()
	hour := now.Hour()
	added, err := eng.Add(&task.Task{
		Name:    "sched",
		Command: "/bin/true",
		TaskType: task.TaskType{Kind: task.KindScheduled, Scheduled: &task.ScheduledTask{Hour: &hour}},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	reg.Mutate(added.ID, func(p *registry.Process) { p.Task.Status = task.StatusProcessing })
	snapshot := reg.View(added.ID)
	l.tickScheduled(snapshot, now)
	// still processing; tickScheduled must not have tried to start it again
	// (which would error since it's already processing, but we only assert
	// the status is unaffected here).
	if reg.View(added.ID).Status != task.StatusProcessing {
		t.Fatal("expected status to remain processing")
	}
}

func TestTickPeriodicFiresAfterInterval(t *testing.T) {
	l, eng, reg := newTestLoop()
	added, err := eng.Add(&task.Task{
		Name:     "tick",
		Command:  "/bin/sleep",
		Args:     []string{"2"},
		TaskType: task.TaskType{Kind: task.KindPeriodic, Periodic: &task.PeriodicTask{Interval: 1}},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	reg.Mutate(added.ID, func(p *registry.Process) { p.Task.Status = task.StatusInterval })
	defer eng.Stop(task.Flag{ID: added.ID}, true)

	l.tickPeriodic(reg.View(added.ID), time.Now())

	view := reg.View(added.ID)
	if view.Status != task.StatusExecuting {
		t.Fatalf("status = %s, want executing", view.Status)
	}
}

func TestTickPeriodicSkipsBeforeInterval(t *testing.T) {
	l, eng, reg := newTestLoop()
	added, err := eng.Add(&task.Task{
		Name:    "tick",
		Command: "/bin/true",
		TaskType: task.TaskType{Kind: task.KindPeriodic, Periodic: &task.PeriodicTask{Interval: 3600, LastRun: time.Now().Unix()}},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	reg.Mutate(added.ID, func(p *registry.Process) { p.Task.Status = task.StatusInterval })

	l.tickPeriodic(reg.View(added.ID), time.Now())

	if reg.View(added.ID).Status != task.StatusInterval {
		t.Fatal("expected task to remain in interval, not yet due")
	}
}

func TestTickPeriodicPausedNeverFires(t *testing.T) {
	l, eng, reg := newTestLoop()
	added, err := eng.Add(&task.Task{
		Name:    "tick",
		Command: "/bin/true",
		TaskType: task.TaskType{Kind: task.KindPeriodic, Periodic: &task.PeriodicTask{Interval: 1}},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	reg.Mutate(added.ID, func(p *registry.Process) { p.Task.Status = task.StatusPaused })

	l.tickPeriodic(reg.View(added.ID), time.Now().Add(time.Hour))

	if reg.View(added.ID).Status != task.StatusPaused {
		t.Fatal("expected paused task to remain paused regardless of elapsed interval")
	}
}

func TestTickPeriodicExecutingWithoutSyncSkips(t *testing.T) {
	l, eng, reg := newTestLoop()
	added, err := eng.Add(&task.Task{
		Name:    "tick",
		Command: "/bin/true",
		TaskType: task.TaskType{Kind: task.KindPeriodic, Periodic: &task.PeriodicTask{Interval: 1, Sync: false}},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	reg.Mutate(added.ID, func(p *registry.Process) {
		pid := 99999
		p.Task.Status = task.StatusExecuting
		p.Task.PID = &pid
	})

	l.tickPeriodic(reg.View(added.ID), time.Now().Add(time.Hour))

	view := reg.View(added.ID)
	if view.Status != task.StatusExecuting || *view.PID != 99999 {
		t.Fatal("expected sync=false executing task to be left untouched")
	}
}

func TestTickAsyncRespectsCrashLoop(t *testing.T) {
	l, eng, reg := newTestLoop()
	added, err := eng.Add(&task.Task{
		Name:     "flap",
		Command:  "/bin/true",
		TaskType: task.TaskType{Kind: task.KindAsync, Async: &task.AsyncTask{}},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	reg.Mutate(added.ID, func(p *registry.Process) { p.Task.Status = task.StatusAutoRestart })

	now := time.Now()
	for i := 0; i < 6; i++ {
		l.restarts.NextBackoff(added.ID, now)
	}
	l.tickAsync(added.ID, task.StatusAutoRestart, now)

	if reg.View(added.ID).PID != nil {
		t.Fatal("expected crash-looping task to be withheld, not started")
	}
}

func TestTickAsyncWithholdsRestartDuringBackoffWindow(t *testing.T) {
	l, eng, reg := newTestLoop()
	added, err := eng.Add(&task.Task{
		Name:     "flap",
		Command:  "/bin/true",
		TaskType: task.TaskType{Kind: task.KindAsync, Async: &task.AsyncTask{}},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	reg.Mutate(added.ID, func(p *registry.Process) { p.Task.Status = task.StatusAutoRestart })

	now := time.Now()
	backoff := l.restarts.NextBackoff(added.ID, now)

	l.tickAsync(added.ID, task.StatusAutoRestart, now.Add(time.Millisecond))
	if reg.View(added.ID).PID != nil {
		t.Fatal("expected restart to be withheld inside the backoff window")
	}

	l.tickAsync(added.ID, task.StatusAutoRestart, now.Add(backoff+time.Second))
	waitDoneMonitor(t, reg, added.ID)
	view := reg.View(added.ID)
	if view.Status != task.StatusStopped || view.Code == nil {
		t.Fatalf("expected the task to have been restarted and exited once the backoff window elapsed, got %+v", view)
	}
}

func TestTickRotatesOversizedLogFile(t *testing.T) {
	reg := registry.New()
	restarts := restart.New()
	log := logging.New(io.Discard, logging.Debug)
	eng := engine.New(reg, nil, restarts, log)

	logPath := filepath.Join(t.TempDir(), "watchmen.log")
	big := strings.Repeat("z", 10*1024*1024+1)
	if err := os.WriteFile(logPath, []byte(big), 0o644); err != nil {
		t.Fatalf("writing fixture log: %v", err)
	}

	l := New(eng, reg, restarts, log, logPath)
	l.tick(time.Now())

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("stat live log: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("live log size = %d, want 0 after a tick past the rotation threshold", info.Size())
	}
	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Fatalf("expected a .1 backup after tick rotated the log: %v", err)
	}
}

func waitDoneMonitor(t *testing.T, reg *registry.Registry, id int64) {
	t.Helper()
	p, ok := reg.Get(id)
	if !ok {
		t.Fatalf("task %d not found", id)
	}
	select {
	case <-p.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("task %d did not finish within timeout", id)
	}
}
