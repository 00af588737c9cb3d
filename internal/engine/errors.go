package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// Category groups errors by how the session recovers from them.
type Category string

const (
	CategoryUnknown        Category = "unknown"
	CategoryInvalidURL     Category = "invalid_url"
	CategoryExtraction     Category = "extraction"
	CategoryEmptyCatalog   Category = "empty_catalog"
	CategoryTransfer       Category = "transfer"
	CategoryFilesystem     Category = "filesystem"
	CategoryConfig         Category = "config"
	CategoryPartialFailure Category = "partial_failure"
)

// CategorizedError attaches a Category to an error.
type CategorizedError struct {
	Category Category
	Err      error
}

func (e CategorizedError) Error() string {
	if e.Err == nil {
		return string(e.Category)
	}
	return e.Err.Error()
}

func (e CategorizedError) Unwrap() error {
	return e.Err
}

// Wrap tags err with category. A nil err stays nil.
func Wrap(category Category, err error) error {
	if err == nil {
		return nil
	}
	return CategorizedError{Category: category, Err: err}
}

// ExtractionError is returned by Engine.Extract.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// TransferError is returned by Engine.Transfer.
type TransferError struct {
	URL string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s: %v", e.URL, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func extractionErr(url string, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExtractionError{URL: url, Err: err}
}

func transferErr(url string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransferError
	if errors.As(err, &te) {
		return err
	}
	return &TransferError{URL: url, Err: err}
}

// CategoryOf returns the most specific category found in err's chain.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return CategoryFilesystem
	}
	var te *TransferError
	if errors.As(err, &te) {
		return CategoryTransfer
	}
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return CategoryExtraction
	}
	return CategoryUnknown
}

// ExitCode maps an error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	switch CategoryOf(err) {
	case CategoryPartialFailure:
		return 2
	case CategoryConfig, CategoryInvalidURL:
		return 3
	case CategoryExtraction, CategoryEmptyCatalog:
		return 4
	case CategoryTransfer, CategoryFilesystem:
		return 5
	default:
		return 1
	}
}
