package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrNotDirectory = errors.New("not a directory")
	ErrInvalidPath  = errors.New("invalid path")
	ErrAncestor     = errors.New("path is cwd or an ancestor of cwd")

	// ErrCancelled is the cooperative-cancellation sentinel a task handler
	// returns (or wraps) when it observes ctx.Done() at a suspension point.
	// The scheduler's worker wrapper treats it distinctly from other
	// errors: it transitions the task to Paused instead of Error.
	ErrCancelled = errors.New("task cancelled")
)
