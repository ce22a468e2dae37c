// Package engine implements the supervision engine: the public API the
// request dispatcher and monitor loop call into. It is the only writer
// of the task registry and the only originator of cache writes.
//
// A central struct wraps the registry with a logger and a persistence
// hook; operations resolve a selector to one or more ids before
// mutating, and cache writes are fired off as independent goroutines
// rather than awaited inline.
package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/ahriroot/watchmen/internal/apperr"
	"github.com/ahriroot/watchmen/internal/cache"
	"github.com/ahriroot/watchmen/internal/launcher"
	"github.com/ahriroot/watchmen/internal/logging"
	"github.com/ahriroot/watchmen/internal/registry"
	"github.com/ahriroot/watchmen/internal/restart"
	"github.com/ahriroot/watchmen/internal/task"
)

// Engine wires the registry, cache store, and restart tracker together
// behind the operation set the dispatcher and monitor loop call.
type Engine struct {
	reg      *registry.Registry
	store    *cache.Store
	restarts *restart.Tracker
	log      *logging.Logger
	nextID   int64
}

// New builds an Engine. store may be nil to disable persistence (tests).
func New(reg *registry.Registry, store *cache.Store, restarts *restart.Tracker, log *logging.Logger) *Engine {
	return &Engine{reg: reg, store: store, restarts: restarts, log: log}
}

// Boot loads the cache snapshot (if any), inserts every persisted task
// into the registry, and re-spawns the async tasks that were running
// when the daemon last stopped, per the persistence recovery contract.
func (e *Engine) Boot() error {
	if e.store == nil {
		return nil
	}
	snap, err := e.store.Load()
	if err != nil {
		return err
	}
	var maxID int64
	for _, t := range snap.Tasks {
		if err := e.reg.Add(t); err != nil {
			e.log.Warnf("boot: duplicate task id %d in cache, skipping", t.ID)
			continue
		}
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	atomic.StoreInt64(&e.nextID, maxID)

	for _, t := range cache.RunningAsync(snap) {
		e.log.Infof("boot: re-spawning async task %d (%s), was running at last shutdown", t.ID, t.Name)
		// The persisted pid and status belong to the previous daemon's child;
		// clear them so startOne's already-running guard admits the re-spawn.
		e.reg.Mutate(t.ID, func(p *registry.Process) {
			p.Task.PID = nil
			p.Task.Status = task.StatusStopped
		})
		if err := e.startOne(t.ID); err != nil {
			e.log.Warnf("boot: failed to re-spawn task %d: %v", t.ID, err)
		}
	}
	return nil
}

// assignID returns t.ID if already set, else the next free id.
func (e *Engine) assignID(t *task.Task) {
	if t.ID != 0 {
		return
	}
	t.ID = atomic.AddInt64(&e.nextID, 1)
}

// Add validates and inserts a new task.
func (e *Engine) Add(t *task.Task) (*task.Task, error) {
	e.assignID(t)
	t.ExpandEnv()
	if err := t.Validate(); err != nil {
		return nil, apperr.Validationf("%v", err)
	}
	t.Status = t.InitialStatus()
	t.PID = nil
	t.Code = nil

	if err := e.reg.Add(t); err != nil {
		return nil, apperr.Validationf("%v", err)
	}
	e.scheduleCacheWrite()
	return t.Clone(), nil
}

// Run adds t, then starts it immediately unless it is Scheduled (which
// stays armed in "waiting").
func (e *Engine) Run(t *task.Task) (*task.Task, error) {
	added, err := e.Add(t)
	if err != nil {
		return nil, err
	}
	if t.TaskType.Kind == task.KindAsync || t.TaskType.Kind == task.KindPeriodic {
		if err := e.startOne(added.ID); err != nil {
			return nil, err
		}
	}
	return e.reg.View(added.ID), nil
}

// Reload replaces the task at t.ID with t, without the remove-step cache
// write (the add() that follows schedules one write for both steps).
func (e *Engine) Reload(t *task.Task) (*task.Task, error) {
	if t.ID != 0 {
		e.reg.Remove(t.ID)
		e.restarts.Forget(t.ID)
	}
	return e.Add(t)
}

// Remove drops every task matched by flag that is not currently running,
// processing, executing, or auto-restarting. Running members are skipped
// and reported, matching the "all-or-nothing per entry" group policy.
func (e *Engine) Remove(flag task.Flag) (string, error) {
	ids, err := e.reg.Select(flag)
	if err != nil {
		return "", apperr.Validationf("%v", err)
	}
	if len(ids) == 0 {
		return "", apperr.NotFoundf("no task matches selector")
	}

	var removed, skipped []int64
	for _, id := range ids {
		p, ok := e.reg.Get(id)
		if !ok {
			continue
		}
		if isLiveStatus(p.Task.Status) {
			skipped = append(skipped, id)
			continue
		}
		e.reg.Remove(id)
		e.restarts.Forget(id)
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		e.scheduleCacheWrite()
	}
	msg := fmt.Sprintf("removed: %s; skipped (running): %s", idList(removed), idList(skipped))
	if len(removed) == 0 {
		return msg, apperr.WrongStatef("no task removed, all selected are running: %s", idList(skipped))
	}
	return msg, nil
}

// Delete forces a stop on every matched task, then removes it.
func (e *Engine) Delete(flag task.Flag) (string, error) {
	ids, err := e.reg.Select(flag)
	if err != nil {
		return "", apperr.Validationf("%v", err)
	}
	if len(ids) == 0 {
		return "", apperr.NotFoundf("no task matches selector")
	}

	var removed []int64
	for _, id := range ids {
		p, ok := e.reg.Get(id)
		if !ok {
			continue
		}
		if isLiveStatus(p.Task.Status) {
			_ = e.stopOne(id, false)
		}
		e.reg.Remove(id)
		e.restarts.Forget(id)
		removed = append(removed, id)
	}
	e.scheduleCacheWrite()
	return fmt.Sprintf("deleted: %s", idList(removed)), nil
}

// Write enqueues data to the stdin of every task matched by flag that is
// running with a stdin pipe.
func (e *Engine) Write(flag task.Flag, data []byte) (string, error) {
	ids, err := e.reg.Select(flag)
	if err != nil {
		return "", apperr.Validationf("%v", err)
	}
	if len(ids) == 0 {
		return "", apperr.NotFoundf("no task matches selector")
	}
	var written []int64
	for _, id := range ids {
		p, ok := e.reg.Get(id)
		if !ok {
			continue
		}
		if p.Task.Status != task.StatusRunning || p.Stdin == nil {
			continue
		}
		if p.Stdin.Send(data) {
			written = append(written, id)
		}
	}
	if len(written) == 0 {
		return "", apperr.WrongStatef("no running task with stdin matched selector")
	}
	return fmt.Sprintf("wrote to: %s", idList(written)), nil
}

// Pause marks every matched Periodic task (in interval or executing) as
// paused; the monitor loop skips paused tasks on subsequent ticks.
func (e *Engine) Pause(flag task.Flag) (string, error) {
	return e.transitionAll(flag, []task.Status{task.StatusInterval, task.StatusExecuting}, task.StatusPaused)
}

// Resume returns every matched paused task to "interval".
func (e *Engine) Resume(flag task.Flag) (string, error) {
	return e.transitionAll(flag, []task.Status{task.StatusPaused}, task.StatusInterval)
}

func (e *Engine) transitionAll(flag task.Flag, from []task.Status, to task.Status) (string, error) {
	ids, err := e.reg.Select(flag)
	if err != nil {
		return "", apperr.Validationf("%v", err)
	}
	if len(ids) == 0 {
		return "", apperr.NotFoundf("no task matches selector")
	}
	var changed []int64
	for _, id := range ids {
		if e.update(id, nil, &to, nil, from) {
			changed = append(changed, id)
		}
	}
	if len(changed) == 0 {
		return "", apperr.WrongStatef("no matched task was in a state eligible for this transition")
	}
	e.scheduleCacheWrite()
	return fmt.Sprintf("%s: %s", to, idList(changed)), nil
}

// List returns a read-only snapshot of every task matching flag, or every
// task if flag is nil or empty.
func (e *Engine) List(flag *task.Flag) ([]*task.Task, error) {
	if flag == nil || flag.Empty() {
		return e.reg.Snapshot(), nil
	}
	ids, err := e.reg.Select(*flag)
	if err != nil {
		return nil, apperr.Validationf("%v", err)
	}
	out := make([]*task.Task, 0, len(ids))
	for _, id := range ids {
		if v := e.reg.View(id); v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

// update atomically mutates runtime fields for id, applying the status
// change only if the task's current status is in allowedFrom (or
// allowedFrom is nil, meaning unconditional). Returns whether the
// mutation was applied.
func (e *Engine) update(id int64, pid *int, status *task.Status, code *int, allowedFrom []task.Status) bool {
	applied := false
	e.reg.Mutate(id, func(p *registry.Process) {
		if allowedFrom != nil && !statusIn(p.Task.Status, allowedFrom) {
			return
		}
		if pid != nil {
			p.Task.PID = pid
		}
		if status != nil {
			p.Task.Status = *status
		}
		if code != nil {
			p.Task.Code = code
		}
		applied = true
	})
	return applied
}

func statusIn(s task.Status, set []task.Status) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

func isLiveStatus(s task.Status) bool {
	switch s {
	case task.StatusRunning, task.StatusProcessing, task.StatusExecuting, task.StatusAutoRestart:
		return true
	default:
		return false
	}
}

// isStoppable reports whether a task in status s is eligible for stop():
// running or auto-restarting. Scheduled tasks mid-fire (processing) and
// periodic tasks mid-fire (executing) are deliberately excluded, unlike
// the broader isLiveStatus set Remove/Delete use to decide what's "live
// enough to leave alone".
func isStoppable(s task.Status) bool {
	switch s {
	case task.StatusRunning, task.StatusAutoRestart:
		return true
	default:
		return false
	}
}

func idList(ids []int64) string {
	if len(ids) == 0 {
		return "[]"
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// scheduleCacheWrite spawns a background goroutine that snapshots the
// registry and writes it to disk. Writes are idempotent full snapshots,
// so concurrent schedules are safe; whichever completes last wins.
func (e *Engine) scheduleCacheWrite() {
	if e.store == nil {
		return
	}
	snap := e.reg.Snapshot()
	go func() {
		if err := e.store.Save(snap); err != nil {
			e.log.Warnf("cache write failed: %v", err)
		}
	}()
}

// Launcher is overridable in tests; defaults to launcher.Launch.
var Launcher = launcher.Launch
