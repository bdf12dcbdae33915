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

	"github.com/spf13/cobra"

	"github.com/raphaelisaac/hulken/internal/history"
	"github.com/raphaelisaac/hulken/internal/report"
)

func newHistoryCmd(a *app) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent run scores and the trend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n <= 0 {
				n = a.cfg.Report.History
			}
			records, err := report.NewSink(a.cfg.Report.Dir, false, a.logger).LoadRecent(n)
			if err != nil {
				return setupError(fmt.Errorf("load reports: %w", err))
			}
			if len(records) == 0 {
				fmt.Fprintf(a.out, "No reports in %s\n", a.cfg.Report.Dir)
				return nil
			}
			h := history.New(n)
			h.Seed(records)

			p := newPrinter(a.out)
			p.header("Run history", fmt.Sprintf("last %d run(s)", h.Len()))
			p.snapshots(h.Last(n))
			fmt.Fprintln(a.out)
			p.trend(h.Trend())
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "runs", "n", 0, "number of runs to show (default report.history)")
	return cmd
}
