package apperr

import (
	"errors"
	"testing"
)

func TestErrorMessageWithoutWrappedErr(t *testing.T) {
	err := Validationf("task %d missing name", 5)
	if err.Error() != "task 5 missing name" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestErrorMessageWrapsUnderlying(t *testing.T) {
	underlying := errors.New("permission denied")
	err := NewSpawnFailure(underlying, "failed to launch /usr/bin/foo")
	if err.Error() != "failed to launch /usr/bin/foo: permission denied" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !errors.Is(err, underlying) {
		t.Fatal("expected Unwrap to expose the underlying error")
	}
}

func TestAsExtractsCategory(t *testing.T) {
	err := WrongStatef("task %d is already running", 3)
	ae, ok := As(err)
	if !ok || ae.Category != WrongState {
		t.Fatalf("As() = %v, %v", ae, ok)
	}
}

func TestAsRejectsPlainError(t *testing.T) {
	if _, ok := As(errors.New("plain")); ok {
		t.Fatal("expected As to reject a non-apperr error")
	}
}

func TestCategoryConstructors(t *testing.T) {
	cases := []struct {
		err  *Error
		want Category
	}{
		{Validationf("x"), Validation},
		{NotFoundf("x"), NotFound},
		{WrongStatef("x"), WrongState},
		{NewSpawnFailure(nil, "x"), SpawnFailure},
		{NewIOFailure(nil, "x"), IOFailure},
		{Protocolf("x"), Protocol},
	}
	for _, c := range cases {
		if c.err.Category != c.want {
			t.Errorf("category = %v, want %v", c.err.Category, c.want)
		}
	}
}
