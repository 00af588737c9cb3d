package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestCategoryOf(t *testing.T) {
	pathErr := &fs.PathError{Op: "open", Path: "/nope", Err: fs.ErrPermission}
	cases := []struct {
		name string
		err  error
		want Category
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain", err: errors.New("boom"), want: CategoryUnknown},
		{name: "extraction", err: &ExtractionError{URL: "u", Err: errors.New("x")}, want: CategoryExtraction},
		{name: "transfer", err: &TransferError{URL: "u", Err: errors.New("x")}, want: CategoryTransfer},
		{name: "filesystem through transfer", err: &TransferError{URL: "u", Err: pathErr}, want: CategoryFilesystem},
		{name: "explicit wins", err: Wrap(CategoryConfig, &TransferError{URL: "u", Err: pathErr}), want: CategoryConfig},
		{name: "wrapped", err: fmt.Errorf("ctx: %w", &ExtractionError{URL: "u", Err: errors.New("x")}), want: CategoryExtraction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CategoryOf(tc.err); got != tc.want {
				t.Fatalf("CategoryOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("x"), 1},
		{Wrap(CategoryPartialFailure, errors.New("x")), 2},
		{Wrap(CategoryConfig, errors.New("x")), 3},
		{&ExtractionError{URL: "u", Err: errors.New("x")}, 4},
		{Wrap(CategoryEmptyCatalog, errors.New("x")), 4},
		{&TransferError{URL: "u", Err: errors.New("x")}, 5},
		{fmt.Errorf("run: %w", context.Canceled), 130},
	}
	for _, tc := range cases {
		if got := ExitCode(tc.err); got != tc.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(CategoryTransfer, nil) != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
}

func TestErrorWrappingIsIdempotent(t *testing.T) {
	inner := &TransferError{URL: "a", Err: errors.New("x")}
	if got := transferErr("b", inner); got != error(inner) {
		t.Fatalf("transferErr rewrapped an existing TransferError: %v", got)
	}
	if !errors.Is(extractionErr("u", context.DeadlineExceeded), context.DeadlineExceeded) {
		t.Fatal("extraction error should unwrap to its cause")
	}
}
