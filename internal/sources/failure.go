// Package sources contains the upstream adapters. Each adapter normalizes
// one unreliable source into the shared fact shapes and reports failure
// through the taxonomy below, so the aggregator can tell "no data" from
// "could not fetch".
package sources

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind distinguishes the adapter outcomes the aggregator cares
// about. NotFound is a valid empty result and may be cached; FetchError and
// Timeout are transient and must never be cached as absence of data.
type FailureKind string

const (
	KindNotFound   FailureKind = "not_found"
	KindFetchError FailureKind = "fetch_error"
	KindTimeout    FailureKind = "timeout"
)

// Failure is the error type every adapter returns.
type Failure struct {
	Kind   FailureKind
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Detail, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func (f *Failure) Unwrap() error { return f.Err }

// NotFound marks a genuinely absent entity or section.
func NotFound(detail string) error {
	return &Failure{Kind: KindNotFound, Detail: detail}
}

// FetchFailed wraps a transient upstream problem.
func FetchFailed(detail string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: KindTimeout, Detail: detail, Err: err}
	}
	return &Failure{Kind: KindFetchError, Detail: detail, Err: err}
}

// As extracts the Failure from an error chain.
func As(err error) (*Failure, bool) {
	var f *Failure
	ok := errors.As(err, &f)
	return f, ok
}

// IsNotFound reports whether the error chain is a NotFound failure.
func IsNotFound(err error) bool {
	f, ok := As(err)
	return ok && f.Kind == KindNotFound
}

// IsTransient reports whether the error chain is a FetchError or Timeout.
// Unknown errors count as transient: they must not poison the cache.
func IsTransient(err error) bool {
	f, ok := As(err)
	if !ok {
		return true
	}
	return f.Kind == KindFetchError || f.Kind == KindTimeout
}
