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
	"fmt"
	"path/filepath"
	"strings"
)

// ModuleType says whether a stylesheet is plain CSS or a CSS Module.
type ModuleType uint8

const (
	// Global stylesheets keep their names and export nothing.
	Global ModuleType = iota

	// Module stylesheets have their local names scoped to the file.
	Module
)

// String returns "global" or "module".
func (t ModuleType) String() string {
	if t == Module {
		return "module"
	}
	return "global"
}

// ParseModuleType parses "global" or "module".
func ParseModuleType(s string) (ModuleType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "global":
		return Global, nil
	case "module":
		return Module, nil
	default:
		return Global, fmt.Errorf("%w: %q", ErrUnknownModuleType, s)
	}
}

// ClassifyByName applies the naming convention: files named
// "*.module.css" are modules, everything else is global.
func ClassifyByName(path string) ModuleType {
	if strings.HasSuffix(strings.ToLower(filepath.Base(path)), ".module.css") {
		return Module
	}
	return Global
}
