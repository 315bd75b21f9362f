// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

// Inspect traverses the rule structure rooted at node in document order,
// calling f for each *Stylesheet, rule, *Block and *Declaration. If f
// returns false the children of that node are skipped.
//
// Selectors and component values are not visited; use WalkSelectors for
// selector trees.
func Inspect(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}
	switch n := node.(type) {
	case *Stylesheet:
		for _, r := range n.Rules {
			Inspect(r, f)
		}
	case *QualifiedRule:
		if n.Block != nil {
			Inspect(n.Block, f)
		}
	case *AtRule:
		if n.Block != nil {
			Inspect(n.Block, f)
		}
	case *Block:
		for _, it := range n.Items {
			Inspect(it, f)
		}
	}
}

// WalkSelectors calls f for every compound selector in list, including
// compounds nested in pseudo-class selector arguments. Nested compounds are
// visited before the compound that contains them returns.
func WalkSelectors(list SelectorList, f func(*CompoundSelector)) {
	for _, cs := range list {
		for _, c := range cs.Compounds {
			f(c)
			for _, sub := range c.Subclasses {
				if pc, ok := sub.(*PseudoClassSelector); ok && pc.Selectors != nil {
					WalkSelectors(pc.Selectors, f)
				}
			}
		}
	}
}
