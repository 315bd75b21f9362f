// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package css

import (
	"errors"
	"fmt"
)

// Sentinels for hard failures of Parse, checkable with errors.Is.
var (
	// ErrSourceFailed indicates the source provider failed.
	ErrSourceFailed = errors.New("source retrieval failed")

	// ErrTransformFailed indicates a transform failed.
	ErrTransformFailed = errors.New("transform failed")

	// ErrCompileFailed indicates CSS Modules compilation failed.
	ErrCompileFailed = errors.New("css modules compilation failed")

	// ErrUnknownModuleType is returned by ParseModuleType.
	ErrUnknownModuleType = errors.New("unknown module type")
)

// Stage names the pipeline step a hard failure came from.
type Stage string

const (
	StageSource    Stage = "source"
	StageParse     Stage = "parse"
	StageTransform Stage = "transform"
	StageCompile   Stage = "compile"
)

func (s Stage) sentinel() error {
	switch s {
	case StageSource:
		return ErrSourceFailed
	case StageTransform:
		return ErrTransformFailed
	case StageCompile:
		return ErrCompileFailed
	default:
		return nil
	}
}

// Error is a hard failure of Parse. Content and syntax problems are not
// errors; they are reported through the outcome and diagnostics.
type Error struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("css %s %s: %v", e.Stage, e.Path, e.Err)
}

// Unwrap exposes the stage sentinel and the cause.
func (e *Error) Unwrap() []error {
	if s := e.Stage.sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}
