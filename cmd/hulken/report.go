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

	"github.com/raphaelisaac/hulken/internal/checker"
	"github.com/raphaelisaac/hulken/internal/report"
)

// Report output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatCSV  = "csv"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect saved run reports",
	}
	cmd.AddCommand(newReportShowCmd(a))
	return cmd
}

func newReportShowCmd(a *app) *cobra.Command {
	var (
		format   string
		statuses []string
	)
	cmd := &cobra.Command{
		Use:   "show [path]",
		Short: "Print a saved report (default the latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rec *report.Record
			var err error
			if len(args) == 1 {
				rec, err = report.Load(args[0])
			} else {
				rec, err = report.NewSink(a.cfg.Report.Dir, false, a.logger).Latest()
			}
			if err != nil {
				return setupError(fmt.Errorf("load report: %w", err))
			}
			if len(statuses) > 0 {
				filtered, err := onlyStatuses(rec, statuses)
				if err != nil {
					return setupError(err)
				}
				rec = &filtered
			}
			return writeRecord(a, rec, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text|json|csv")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only show checks with these statuses, e.g. FAIL,WARNING")
	return cmd
}

func onlyStatuses(rec *report.Record, names []string) (report.Record, error) {
	statuses := make([]checker.Status, 0, len(names))
	for _, name := range names {
		s, err := checker.ParseStatus(name)
		if err != nil {
			return report.Record{}, err
		}
		statuses = append(statuses, s)
	}
	return rec.Only(statuses...), nil
}

func writeRecord(a *app, rec *report.Record, format string) error {
	switch format {
	case formatText:
		_, err := fmt.Fprint(a.out, rec.Text())
		return err
	case formatJSON:
		return rec.WriteJSON(a.out)
	case formatCSV:
		return rec.WriteCSV(a.out)
	default:
		return setupError(fmt.Errorf("unknown format %q (want text, json or csv)", format))
	}
}
