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
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelisaac/hulken/internal/checker/integrity"
	"github.com/raphaelisaac/hulken/internal/datasource"
)

func newBaselineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "baseline",
		Short: "Record the current table inventory for the inventory check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			wh := a.cfg.Warehouse
			src, err := datasource.Open(ctx, wh.DataSource(), a.logger)
			if err != nil {
				return setupError(err)
			}
			defer func() { _ = src.Close() }()

			b, err := integrity.Snapshot(ctx, src, wh.Schema, wh.TableStatsSQL, time.Now())
			if err != nil {
				return setupError(fmt.Errorf("scan %s: %w", wh.Schema, err))
			}
			path := a.cfg.Checks.Inventory.Baseline
			if err := b.Save(path); err != nil {
				return setupError(err)
			}
			fmt.Fprintf(a.out, "Baseline of %d table(s) in %s saved to %s\n", len(b.Tables), wh.Schema, path)
			return nil
		},
	}
}
