// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package errs defines the error taxonomy shared by the pipes packages.
//
// Every error produced by the engine wraps one of the sentinels below, so
// callers classify with errors.Is or with Classify.
package errs

import (
	"context"

	"github.com/pkg/errors"
)

// Parse errors abort a run before anything executes.
var (
	ErrMalformedChoice      = errors.New("malformed choice syntax")
	ErrMalformedPlaceholder = errors.New("malformed placeholder")
	ErrExpansionLimit       = errors.New("too many expansions")
	ErrUnterminatedQuote    = errors.New("unterminated quote")
	ErrUnknownGroupMode     = errors.New("unknown group mode syntax")
	ErrMalformedSegment     = errors.New("malformed segment")
)

// Resolution errors empty the segment they occur in and become warnings.
var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrUnknownName     = errors.New("unknown name")
	ErrMissingArgument = errors.New("missing argument")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrGroupMode       = errors.New("group mode error")
	ErrMacroDepth      = errors.New("macro recursion too deep")
)

// ErrFlowTooLarge aborts a run whose item list grows past the configured limit.
var ErrFlowTooLarge = errors.New("item list too large")

// Category classifies an error by how the executor reacts to it.
type Category int

const (
	Invocation Category = iota
	Parse
	Resolution
	Abort
)

// String returns the name of the category.
func (c Category) String() string {
	switch c {
	case Parse:
		return "parse"
	case Resolution:
		return "resolution"
	case Abort:
		return "abort"
	default:
		return "invocation"
	}
}

var parseErrors = []error{
	ErrMalformedChoice, ErrMalformedPlaceholder, ErrExpansionLimit,
	ErrUnterminatedQuote, ErrUnknownGroupMode, ErrMalformedSegment,
}

var resolutionErrors = []error{
	ErrIndexOutOfRange, ErrUnknownName, ErrMissingArgument,
	ErrInvalidArgument, ErrGroupMode, ErrMacroDepth,
}

// Classify returns the category of err. Errors outside the taxonomy are
// invocation errors raised by callables.
func Classify(err error) Category {
	if err == nil {
		return Invocation
	}
	if IsAbort(err) {
		return Abort
	}
	for _, target := range parseErrors {
		if errors.Is(err, target) {
			return Parse
		}
	}
	for _, target := range resolutionErrors {
		if errors.Is(err, target) {
			return Resolution
		}
	}
	return Invocation
}

// IsAbort reports whether err must stop the whole run.
func IsAbort(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrFlowTooLarge)
}
