package task

import "testing"

func TestFlagEmpty(t *testing.T) {
	if !(Flag{}).Empty() {
		t.Fatal("zero-value Flag should be Empty")
	}
	if (Flag{ID: 1}).Empty() {
		t.Fatal("Flag with ID should not be Empty")
	}
}

func TestFlagMatchesIDTakesPriority(t *testing.T) {
	f := Flag{ID: 1, Name: "nonmatching"}
	ok, err := f.Matches(&Task{ID: 1, Name: "other"})
	if err != nil || !ok {
		t.Fatalf("expected id match to win, got ok=%v err=%v", ok, err)
	}
}

func TestFlagMatchesNameExact(t *testing.T) {
	f := Flag{Name: "worker"}
	ok, err := f.Matches(&Task{Name: "worker"})
	if err != nil || !ok {
		t.Fatalf("expected exact name match, got ok=%v err=%v", ok, err)
	}
	ok, err = f.Matches(&Task{Name: "worker-2"})
	if err != nil || ok {
		t.Fatalf("expected no match for different name, got ok=%v err=%v", ok, err)
	}
}

func TestFlagMatchesNameRegex(t *testing.T) {
	f := Flag{Name: "^worker-[0-9]+$", Mat: true}
	ok, err := f.Matches(&Task{Name: "worker-12"})
	if err != nil || !ok {
		t.Fatalf("expected regex match, got ok=%v err=%v", ok, err)
	}
	ok, err = f.Matches(&Task{Name: "worker-abc"})
	if err != nil || ok {
		t.Fatalf("expected no regex match, got ok=%v err=%v", ok, err)
	}
}

func TestFlagMatchesGroupFallback(t *testing.T) {
	f := Flag{Group: "batch"}
	ok, err := f.Matches(&Task{Group: "batch"})
	if err != nil || !ok {
		t.Fatalf("expected group match, got ok=%v err=%v", ok, err)
	}
}

func TestFlagMatchesInvalidRegex(t *testing.T) {
	f := Flag{Name: "[", Mat: true}
	if _, err := f.Matches(&Task{Name: "x"}); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestFlagMatchesNoSelector(t *testing.T) {
	ok, err := (Flag{}).Matches(&Task{Name: "anything"})
	if err != nil || ok {
		t.Fatalf("empty flag should match nothing, got ok=%v err=%v", ok, err)
	}
}
