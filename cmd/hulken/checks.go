/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/raphaelisaac/hulken/internal/catalog"
)

func newChecksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checks",
		Short: "List the configured checks and their threshold families",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Build(a.cfg, a.logger)
			if err != nil {
				return setupError(err)
			}
			checks, err := cat.Registry.Resolve(nil)
			if err != nil {
				return setupError(err)
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHECK\tTHRESHOLDS")
			for _, c := range checks {
				fmt.Fprintf(w, "%s\t%s\n", c.Name(), strings.Join(c.Families(), ", "))
			}
			return w.Flush()
		},
	}
}
