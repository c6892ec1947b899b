// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package framebuf

import (
	"errors"
	"fmt"
)

// Package errors for framebuf.
var (
	// ErrInvalidDimension is returned when width or height is below 1.
	ErrInvalidDimension = errors.New("framebuf: invalid dimension")

	// ErrInvalidFormat is returned when a pixel format tag cannot be
	// resolved to a concrete storage type.
	ErrInvalidFormat = errors.New("framebuf: invalid pixel format")

	// ErrUnsupportedStrategy is returned when an operation is invoked for a
	// strategy/operation combination the active collaborators cannot serve.
	ErrUnsupportedStrategy = errors.New("framebuf: unsupported strategy")

	// ErrDevice is returned when an underlying device-API call fails.
	// Device errors are not transient; they are never retried internally.
	ErrDevice = errors.New("framebuf: device error")

	// ErrClosed is returned when a Buffer is used after Close.
	ErrClosed = errors.New("framebuf: buffer closed")

	// ErrNilCollaborator is returned by New when the driver provider or
	// display backend is nil.
	ErrNilCollaborator = errors.New("framebuf: nil collaborator")
)

// StrategyError reports an operation that the active strategy cannot perform,
// naming the missing path. It unwraps to ErrUnsupportedStrategy.
type StrategyError struct {
	Strategy Strategy
	Op       string
	Missing  string // capability or path that is absent, if any
}

func (e *StrategyError) Error() string {
	if e.Missing != "" {
		return fmt.Sprintf("framebuf: %s not supported for strategy %s (missing %s)", e.Op, e.Strategy, e.Missing)
	}
	return fmt.Sprintf("framebuf: %s not supported for strategy %s", e.Op, e.Strategy)
}

func (e *StrategyError) Unwrap() error { return ErrUnsupportedStrategy }

// deviceErr wraps a failed device-API call so that callers can match both
// ErrDevice and the underlying error.
func deviceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDevice, op, err)
}
