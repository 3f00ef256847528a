package faults

import (
	"errors"
)

// Failure kinds. Callers branch on these with errors.Is instead of matching
// message strings; HTTP handlers map them onto status codes.
var (
	ErrValidation  = errors.New("validation failure")
	ErrNotFound    = errors.New("not found")
	ErrEmbedding   = errors.New("embedding failure")
	ErrGeneration  = errors.New("generation failure")
	ErrPersistence = errors.New("persistence failure")
	ErrConsistency = errors.New("consistency violation")
)

type wrapped struct {
	kind  error
	cause error
}

func (w *wrapped) Error() string {
	return w.kind.Error() + ": " + w.cause.Error()
}

func (w *wrapped) Is(target error) bool {
	return target == w.kind
}

func (w *wrapped) Unwrap() error {
	return w.cause
}

// Wrap tags err with a failure kind while preserving the cause chain.
// Wrap(kind, nil) returns nil so call sites can wrap unconditionally.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: kind, cause: err}
}

// New returns a kind-tagged error built from a plain message.
func New(kind error, msg string) error {
	return &wrapped{kind: kind, cause: errors.New(msg)}
}
