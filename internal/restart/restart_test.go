package restart

import (
	"testing"
	"time"
)

func TestNextBackoffDoublesEachCall(t *testing.T) {
	tr := New()
	base := time.Unix(1_700_000_000, 0)

	first := tr.NextBackoff(1, base)
	if first != initialBackoff {
		t.Fatalf("first backoff = %v, want %v", first, initialBackoff)
	}
	second := tr.NextBackoff(1, base.Add(time.Second))
	if second != initialBackoff*2 {
		t.Fatalf("second backoff = %v, want %v", second, initialBackoff*2)
	}
	third := tr.NextBackoff(1, base.Add(2*time.Second))
	if third != initialBackoff*4 {
		t.Fatalf("third backoff = %v, want %v", third, initialBackoff*4)
	}
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	tr := New()
	now := time.Unix(1_700_000_000, 0)
	var last time.Duration
	for i := 0; i < 20; i++ {
		last = tr.NextBackoff(1, now)
		now = now.Add(time.Second)
	}
	if last > maxBackoff {
		t.Fatalf("backoff %v exceeded maxBackoff %v", last, maxBackoff)
	}
}

func TestNextBackoffResetsAfterStability(t *testing.T) {
	tr := New()
	start := time.Unix(1_700_000_000, 0)
	tr.RecordStart(1, start)

	// A crash long after the stability period should reset to initialBackoff
	// regardless of prior doublings.
	tr.NextBackoff(1, start.Add(time.Second))
	tr.NextBackoff(1, start.Add(2*time.Second))

	stable := start.Add(stabilityPeriod + time.Second)
	got := tr.NextBackoff(1, stable)
	if got != initialBackoff {
		t.Fatalf("backoff after stability window = %v, want %v", got, initialBackoff)
	}
}

func TestCrashLoopingTripsAfterThreshold(t *testing.T) {
	tr := New()
	now := time.Unix(1_700_000_000, 0)
	if tr.CrashLooping(1) {
		t.Fatal("should not be crash-looping before any restarts")
	}
	for i := 0; i < crashLoopCount; i++ {
		tr.NextBackoff(1, now)
		now = now.Add(time.Second)
	}
	if !tr.CrashLooping(1) {
		t.Fatal("expected crash-looping after crashLoopCount restarts within the window")
	}
}

func TestCrashLoopingIgnoresRestartsOutsideWindow(t *testing.T) {
	tr := New()
	now := time.Unix(1_700_000_000, 0)
	for i := 0; i < crashLoopCount-1; i++ {
		tr.NextBackoff(1, now)
		now = now.Add(time.Second)
	}
	// Push the window well past the earlier restarts so they're pruned.
	now = now.Add(crashLoopWindow * 2)
	tr.NextBackoff(1, now)
	if tr.CrashLooping(1) {
		t.Fatal("restarts outside crashLoopWindow should not count toward the threshold")
	}
}

func TestResetAndForget(t *testing.T) {
	tr := New()
	now := time.Unix(1_700_000_000, 0)
	for i := 0; i < crashLoopCount; i++ {
		tr.NextBackoff(1, now)
		now = now.Add(time.Second)
	}
	tr.Reset(1)
	if tr.CrashLooping(1) {
		t.Fatal("Reset should clear crash-loop state")
	}
	got := tr.NextBackoff(1, now)
	if got != initialBackoff {
		t.Fatalf("backoff after Reset = %v, want %v", got, initialBackoff)
	}

	tr.Forget(2) // no entry yet; must not panic
}

func TestReadyUnknownIDIsAlwaysReady(t *testing.T) {
	tr := New()
	if !tr.Ready(999, time.Unix(1_700_000_000, 0)) {
		t.Fatal("a task with no recorded crash should always be ready")
	}
}

func TestReadyWithholdsUntilBackoffElapses(t *testing.T) {
	tr := New()
	now := time.Unix(1_700_000_000, 0)
	backoff := tr.NextBackoff(1, now)

	if tr.Ready(1, now.Add(time.Millisecond)) {
		t.Fatal("expected not ready immediately after a crash")
	}
	if !tr.Ready(1, now.Add(backoff)) {
		t.Fatal("expected ready once the backoff window has fully elapsed")
	}
}

func TestCrashLoopingUnknownID(t *testing.T) {
	tr := New()
	if tr.CrashLooping(999) {
		t.Fatal("unknown id should not be crash-looping")
	}
}
