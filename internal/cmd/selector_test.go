package cmd

import "testing"

func TestSelectorFlagsToFlagRequiresOne(t *testing.T) {
	s := &selectorFlags{}
	if _, err := s.toFlag(); err == nil {
		t.Fatal("expected error when no selector flag is set")
	}
}

func TestSelectorFlagsToFlagByID(t *testing.T) {
	s := &selectorFlags{id: 7}
	f, err := s.toFlag()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ID != 7 {
		t.Fatalf("f.ID = %d, want 7", f.ID)
	}
}

func TestSelectorFlagsToFlagByNameAndMat(t *testing.T) {
	s := &selectorFlags{name: "^worker-.*$", mat: true}
	f, err := s.toFlag()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Name != "^worker-.*$" || !f.Mat {
		t.Fatalf("f = %+v", f)
	}
}
