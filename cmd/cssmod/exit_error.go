// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"io"
)

// Exit codes.
const (
	ExitOK = 0

	// ExitNotParsed means at least one stylesheet was Unparseable or
	// NotFound.
	ExitNotParsed = 1

	// ExitFailure covers usage, configuration and pipeline errors.
	ExitFailure = 2
)

// ExitError carries the exit code of a failed command.
//
// # Example
//
//	err := &ExitError{Command: "parse", Code: ExitNotParsed, Reason: "2 of 3 stylesheets not parsed"}
//	fmt.Println(err.Error()) // "parse (exit 1): 2 of 3 stylesheets not parsed"
type ExitError struct {
	// Command is the subcommand that failed.
	Command string

	// Code is the process exit code.
	Code int

	// Reason is a short explanation. May be empty when Wrapped is set.
	Reason string

	// Wrapped is the underlying error.
	Wrapped error

	// Silent suppresses the message; the command already reported it.
	Silent bool
}

// Error returns a formatted error message.
func (e *ExitError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.Code, e.Reason)
	case e.Wrapped != nil:
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.Code, e.Wrapped)
	default:
		return fmt.Sprintf("%s (exit %d)", e.Command, e.Code)
	}
}

// Unwrap returns the underlying error.
func (e *ExitError) Unwrap() error {
	return e.Wrapped
}

// exitCode maps err to a process exit code. Errors that are not an
// *ExitError are failures.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// reportExit prints err unless it is silent and returns its exit code.
func reportExit(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || !exitErr.Silent {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	return exitCode(err)
}
