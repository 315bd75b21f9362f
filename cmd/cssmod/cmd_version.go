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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/cssmodules/services/css"
	"github.com/AleutianAI/cssmodules/services/css/server"
	"github.com/AleutianAI/cssmodules/services/css/transform"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version, parser backends and transforms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(a.out, "cssmod %s\n", server.Version)
			fmt.Fprintf(a.out, "backends:   %s\n", strings.Join(css.Backends().Names(), ", "))
			fmt.Fprintf(a.out, "transforms: %s\n", strings.Join(transform.BuiltinNames(), ", "))
			return nil
		},
	}
}
