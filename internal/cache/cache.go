// Package cache persists the task registry to disk as a single JSON
// snapshot, so the daemon can restore its task list (and re-spawn async
// tasks that were running) across restarts.
//
// Writes go through a temp-file-then-rename so a crash mid-write never
// leaves a truncated file, and the whole task list lives in one
// top-level snapshot struct rather than one file per task.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ahriroot/watchmen/internal/task"
)

// Snapshot is the on-disk shape of the cache file: the full task list as
// of the last Save.
type Snapshot struct {
	Tasks []*task.Task `json:"tasks"`
}

// Store reads and writes the cache file at Path.
type Store struct {
	Path string
}

// New returns a Store rooted at path. path's parent directory is created
// lazily on first Save.
func New(path string) *Store {
	return &Store{Path: path}
}

// Load reads the cache file, returning an empty snapshot (not an error)
// if the file does not yet exist, so a first boot with no prior cache
// is not treated as a failure.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{}, nil
		}
		return nil, fmt.Errorf("read cache %s: %w", s.Path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", s.Path, err)
	}
	return &snap, nil
}

// Save atomically overwrites the cache file with tasks: write to a temp
// file in the same directory, fsync, then rename over the real path, so
// a concurrent reader (or a crash) never observes a partial write.
func (s *Store) Save(tasks []*task.Task) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(Snapshot{Tasks: tasks}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("rename temp cache file into place: %w", err)
	}
	return nil
}

// RunningAsync filters a loaded snapshot down to the async tasks that
// were StatusRunning or StatusAutoRestart when last saved; the daemon
// re-spawns exactly these on boot, per the persistence contract.
func RunningAsync(snap *Snapshot) []*task.Task {
	var out []*task.Task
	for _, t := range snap.Tasks {
		if t.TaskType.Kind != task.KindAsync {
			continue
		}
		if t.Status == task.StatusRunning || t.Status == task.StatusAutoRestart {
			out = append(out, t)
		}
	}
	return out
}
