// Package launcher turns a task.Task into a running os/exec.Cmd: it wires
// stdio per the task's stdout/stderr/stdin fields, merges environment,
// and classifies spawn failures into apperr categories.
package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/ahriroot/watchmen/internal/apperr"
	"github.com/ahriroot/watchmen/internal/task"
)

// Handle is the running-process result of Launch: the *exec.Cmd plus a
// stdin writer satisfying registry.StdinWriter, if the task requested one,
// and captured-output buffers for any stdout/stderr target that asked for
// a pipe rather than a file or discard.
type Handle struct {
	Cmd    *exec.Cmd
	Stdin  *StdinForwarder
	Stdout *OutputBuffer
	Stderr *OutputBuffer
}

// pipeBufferCap bounds how much of a piped stdout/stderr stream is kept in
// memory; older bytes are dropped from the front as new ones arrive.
const pipeBufferCap = 64 * 1024

// OutputBuffer is a concurrency-safe sink for a task's piped stdout or
// stderr: the empty-string redirection target from task.Task.Stdout /
// Stderr. Unlike a real os.Pipe, nothing has to read it to keep the child
// from blocking — Write always succeeds and simply trims the oldest bytes
// once the buffer exceeds pipeBufferCap.
type OutputBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func newOutputBuffer() *OutputBuffer {
	return &OutputBuffer{}
}

func (o *OutputBuffer) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buf = append(o.buf, p...)
	if over := len(o.buf) - pipeBufferCap; over > 0 {
		o.buf = o.buf[over:]
	}
	return len(p), nil
}

// Bytes returns a copy of the captured output retained so far.
func (o *OutputBuffer) Bytes() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]byte, len(o.buf))
	copy(out, o.buf)
	return out
}

// StdinForwarder buffers writes to a child's stdin pipe over a channel, so
// the dispatcher's write() call never blocks on a slow or wedged child.
type StdinForwarder struct {
	ch     chan []byte
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

const stdinQueueDepth = 64

func newStdinForwarder(w *os.File) *StdinForwarder {
	f := &StdinForwarder{ch: make(chan []byte, stdinQueueDepth), done: make(chan struct{})}
	go func() {
		defer w.Close()
		for {
			select {
			case data, ok := <-f.ch:
				if !ok {
					return
				}
				if _, err := w.Write(data); err != nil {
					return
				}
			case <-f.done:
				// Flush whatever Send queued before Close, then close the pipe.
				for {
					select {
					case data := <-f.ch:
						if _, err := w.Write(data); err != nil {
							return
						}
					default:
						return
					}
				}
			}
		}
	}()
	return f
}

// Send enqueues data for the child's stdin. Returns false if the writer
// has been closed or the queue is full.
func (f *StdinForwarder) Send(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	select {
	case f.ch <- data:
		return true
	default:
		return false
	}
}

// Close stops accepting new data; the forwarder goroutine writes what is
// already queued, then closes the pipe.
func (f *StdinForwarder) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.done)
}

// Launch builds and starts a child process for t. On success the returned
// Handle's Cmd.Process is running; the caller is responsible for Wait()ing
// on it (typically from the monitor goroutine).
func Launch(t *task.Task) (*Handle, error) {
	cmd := exec.Command(t.Command, t.Args...)
	cmd.Dir = t.Dir

	// New process group so stopOne can signal the whole tree a task may
	// have forked, not just the direct child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Env = mergeEnv(os.Environ(), t.Env)

	stdout, err := wireStdout(cmd, t.Stdout)
	if err != nil {
		return nil, err
	}
	stderr, err := wireStderr(cmd, t.Stderr)
	if err != nil {
		return nil, err
	}

	var fwd *StdinForwarder
	if t.Stdin {
		w, err := cmd.StdinPipe()
		if err != nil {
			return nil, apperr.NewSpawnFailure(err, "failed to open stdin pipe")
		}
		fwd = newStdinForwarder(w.(*os.File))
	}

	if err := cmd.Start(); err != nil {
		if fwd != nil {
			fwd.Close()
		}
		return nil, classifyStartErr(err, t.Command)
	}

	return &Handle{Cmd: cmd, Stdin: fwd, Stdout: stdout, Stderr: stderr}, nil
}

// classifyStartErr distinguishes "binary not found" / "permission denied"
// from a generic spawn failure, so the dispatcher can report a clearer
// message without parsing strings itself.
func classifyStartErr(err error, command string) *apperr.Error {
	if os.IsNotExist(err) {
		return apperr.NewSpawnFailure(err, fmt.Sprintf("command not found: %s", command))
	}
	if os.IsPermission(err) {
		return apperr.NewSpawnFailure(err, fmt.Sprintf("permission denied: %s", command))
	}
	return apperr.NewSpawnFailure(err, fmt.Sprintf("failed to start %s", command))
}

// mergeEnv overlays task-declared variables onto the parent process
// environment; the task's values win on key collision.
func mergeEnv(parent []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return parent
	}
	out := append([]string(nil), parent...)
	for k, v := range overlay {
		out = append(out, k+"="+v)
	}
	return out
}

// wireStdout wires the task's stdout target onto cmd: nil discards (cmd.Stdout
// stays nil, which os/exec treats as /dev/null), empty string attaches a real
// OutputBuffer pipe the caller can read back via the returned value, and a
// non-empty path appends to that file, creating parent directories as needed.
// cmd.Stdout is only assigned when there is a concrete writer — leaving a nil
// *os.File assigned to the io.Writer-typed field would wrap it in a non-nil
// interface, defeating os/exec's own "nil means /dev/null" contract.
func wireStdout(cmd *exec.Cmd, target *string) (*OutputBuffer, error) {
	f, buf, err := openTarget(target)
	if err != nil {
		return nil, err
	}
	switch {
	case buf != nil:
		cmd.Stdout = buf
	case f != nil:
		cmd.Stdout = f
	}
	return buf, nil
}

func wireStderr(cmd *exec.Cmd, target *string) (*OutputBuffer, error) {
	f, buf, err := openTarget(target)
	if err != nil {
		return nil, err
	}
	switch {
	case buf != nil:
		cmd.Stderr = buf
	case f != nil:
		cmd.Stderr = f
	}
	return buf, nil
}

// openTarget resolves one stdout/stderr target into either an open file (the
// non-empty path case) or a fresh OutputBuffer (the empty-string pipe case).
// At most one of the two return values is non-nil; both nil means discard.
func openTarget(target *string) (*os.File, *OutputBuffer, error) {
	if target == nil {
		return nil, nil, nil
	}
	if *target == "" {
		return nil, newOutputBuffer(), nil
	}
	dir := filepath.Dir(*target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, apperr.NewIOFailure(err, fmt.Sprintf("failed to create directory %s", dir))
	}
	f, err := os.OpenFile(*target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, apperr.NewIOFailure(err, fmt.Sprintf("failed to open %s", *target))
	}
	return f, nil, nil
}
