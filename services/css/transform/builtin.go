// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package transform

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownTransform is returned by Lookup and FromNames for names
// without a built-in transform.
var ErrUnknownTransform = errors.New("unknown transform")

var builtins = map[string]Transform{
	Nesting{}.Name():   Nesting{},
	DropEmpty{}.Name(): DropEmpty{},
}

// Lookup returns the built-in transform called name.
func Lookup(name string) (Transform, error) {
	t, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, name)
	}
	return t, nil
}

// BuiltinNames returns the names of the built-in transforms, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromNames builds a pipeline of built-in transforms in the given order.
func FromNames(names ...string) (*Pipeline, error) {
	transforms := make([]Transform, 0, len(names))
	for _, name := range names {
		t, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		transforms = append(transforms, t)
	}
	return NewPipeline(transforms...), nil
}
