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

package diagnosis

// Template keys used by the built-in checks.
const (
	FreshnessNoData = "freshness.no_data"
	FreshnessStale  = "freshness.stale"
	SyncLagStale    = "sync_lag.stale"

	ContinuityOngoing   = "continuity.ongoing"
	ContinuityTransient = "continuity.transient"

	DuplicatesAppendMode = "duplicates.append_mode"
	DuplicatesUnexpected = "duplicates.unexpected"
	NullsMissing         = "nulls.missing"
	PriceCents           = "price.cents"
	PriceOutliers        = "price.outliers"
	VolumeEmpty          = "volume.empty"

	InventoryMissing = "inventory.missing"
	InventoryEmptied = "inventory.emptied"
	InventoryEmpty   = "inventory.empty"
	InventoryNew     = "inventory.new"

	PIIExposed             = "pii.exposed"
	HashMalformed          = "hashes.malformed"
	HashExpectedMissing    = "hashes.expected_missing"
	HashJobBroken          = "hashes.job_broken"
	HashMatchPartial       = "hash_match.partial"
	HashMatchNormalization = "hash_match.normalization"
	ScheduleFrequency      = "schedule.frequency"
	ScheduleErrors         = "schedule.errors"
	ScheduleStale          = "schedule.stale"

	CrossSourceMismatch    = "cross_source.mismatch"
	CrossSourceSourceEmpty = "cross_source.source_empty"
	CrossSourceInactive    = "cross_source.inactive"
)

// Default returns a catalog holding every built-in template. Keys with more
// than one version render with the newest unless pinned.
func Default() *Catalog {
	c := NewCatalog()

	c.MustRegister(FreshnessNoData, "v1",
		`{{.table}} returned no rows, so {{.source}} has never synced or the table was truncated.`,
		`Every report built on {{.source}} is empty.`,
		`Verify the {{.source}} connector is enabled and pointed at {{.table}}, then run a full sync.`)

	c.MustRegister(FreshnessStale, "v1",
		`{{.source}} has not delivered data for {{.days}} days (latest {{.latest}}).`,
		`Reports for {{.source}} are missing the last {{.days}} days.`,
		`Check the {{.source}} connector sync status and trigger a sync.`)
	c.MustRegister(FreshnessStale, "v2",
		`The {{.source}} connector stopped delivering new rows. The most recent business date is {{.latest}}, {{.days}} days behind.`,
		`{{if .has_value}}About {{money .lost}} of {{.source}} activity ({{.days}} days at {{money .daily_value}}/day) is missing from reporting.{{else}}Dashboards for {{.source}} show no activity after {{.latest}}.{{end}}`,
		`Open the {{.source}} connector, confirm its credentials are still valid, then run a sync covering {{.latest}} to today.`)

	c.MustRegister(SyncLagStale, "v1",
		`{{.table}} has not been written for {{number .hours}} hours ({{.days}} days).`,
		`{{if .has_value}}Roughly {{money .lost}} of spend is untracked.{{else}}Downstream tables built from {{.table}} are frozen.{{end}}`,
		`Restart the connector feeding {{.table}} and check its last job log for authentication or quota errors.`)

	c.MustRegister(ContinuityOngoing, "v1",
		`{{.source}} is missing {{.count}} day(s) including the most recent ones ({{join .missing ", "}}), so the sync is currently broken.`,
		`New {{.source}} data is not arriving; every day the connector stays down widens the gap.`,
		`Restart the {{.source}} connector urgently and confirm the next sync lands today's rows.`)
	c.MustRegister(ContinuityTransient, "v1",
		`{{.source}} is missing {{.count}} isolated day(s) ({{join .missing ", "}}) while recent days are present, which points to a transient sync hiccup.`,
		`Totals for {{join .missing ", "}} are understated for {{.source}}.`,
		`Trigger a historical backfill of {{.source}} for {{join .missing ", "}} only.`)

	c.MustRegister(DuplicatesAppendMode, "v1",
		`{{.table}} is loaded in append mode and re-ingests overlapping windows, leaving {{number .duplicates}} repeated {{.key}} keys.`,
		`Sums over {{.table}} are inflated by {{pct .rate}}.`,
		`Deduplicate on {{.key}} keeping the latest {{.ingested}}.`)
	c.MustRegister(DuplicatesAppendMode, "v2",
		`{{.table}} is an append-mode sync: each run re-reads a lookback window, so {{number .duplicates}} rows repeat an existing ({{.key}}) key. This is structural, not corruption.`,
		`Any SUM or COUNT over {{.table}} is inflated by {{pct .rate}} unless rows are deduplicated first.`,
		`Query through a deduplicated view: SELECT * FROM (SELECT *, ROW_NUMBER() OVER (PARTITION BY {{.key}} ORDER BY {{.ingested}} DESC) AS rn FROM {{.table}}) t WHERE rn = 1`)
	c.MustRegister(DuplicatesUnexpected, "v1",
		`{{.table}} holds {{number .duplicates}} rows that repeat the declared key ({{.key}}), which should be unique.`,
		`Totals over {{.table}} are overstated by {{pct .rate}}.`,
		`Find the repeated keys with GROUP BY {{.key}} HAVING COUNT(*) > 1 and check whether the connector was reset without truncating the table.`)

	c.MustRegister(NullsMissing, "v1",
		`{{number .nulls}} rows in {{.table}} have no {{.column}} ({{pct .rate}}).`,
		`This {{.purpose}}.`,
		`Check whether the source stopped sending {{.column}} or the connector schema dropped it, then resync the affected rows.`)

	c.MustRegister(PriceCents, "v1",
		`The median {{.column}} in {{.table}} is {{money .median}}, above {{money .threshold}}, so prices are likely stored in cents.`,
		`Revenue computed from {{.table}} is overstated about 100x.`,
		`Compare a few orders with the source admin and divide {{.column}} by 100 in the staging model if confirmed.`)
	c.MustRegister(PriceOutliers, "v1",
		`{{number .count}} rows in {{.table}} have {{.column}} above {{money .bound}}.`,
		`A handful of extreme prices can dominate revenue totals.`,
		`Review the largest {{.column}} values in {{.table}} against the source system.`)

	c.MustRegister(VolumeEmpty, "v1",
		`{{.table}} has no rows for {{.period}}.`,
		`{{.source}} reports for this period are empty.`,
		`Confirm {{.source}} had activity in this period, and if so run a sync for it.`)

	c.MustRegister(InventoryMissing, "v1",
		`{{.table}} is expected but does not exist.`,
		`Everything reading {{.table}} fails.`,
		`Recreate the connector stream for {{.table}} or restore it from backup.`)
	c.MustRegister(InventoryEmptied, "v1",
		`{{.table}} had {{number .previous}} rows at baseline and is now empty.`,
		`Historical data for {{.table}} is gone.`,
		`Check for a reset or overwrite sync on {{.table}} and restore from a snapshot.`)
	c.MustRegister(InventoryEmpty, "v1",
		`{{.table}} was empty at baseline and still is.`,
		`No data from {{.table}} reaches reports.`,
		`Decide whether {{.table}} should be synced at all; disable the stream if not.`)
	c.MustRegister(InventoryNew, "v1",
		`{{.table}} appeared after the baseline was taken ({{number .rows}} rows).`,
		`Unreviewed tables may carry PII outside the hashing pipeline.`,
		`Review the columns of {{.table}}, then refresh the baseline.`)

	c.MustRegister(PIIExposed, "v1",
		`{{number .count}} rows in {{.table}}.{{.column}} contain {{.description}} in clear text.`,
		`Exposed personal data is a compliance violation regardless of volume.`,
		`Hash or null {{.table}}.{{.column}} now and check that the hashing job covers this table.`)
	c.MustRegister(HashMalformed, "v1",
		`{{number .count}} values in {{.table}}.{{.column}} are not {{.length}}-character digests.`,
		`Malformed hashes never match across tables, breaking customer joins.`,
		`Find rows where the length differs from {{.length}} and rehash them from the source values.`)
	c.MustRegister(HashExpectedMissing, "v1",
		`{{pct .rate}} of {{.table}} rows have no {{.column}}, which is expected because {{.reason}}.`,
		`Those rows cannot be attributed to a customer.`,
		`No fix needed unless the rate keeps rising.`)
	c.MustRegister(HashJobBroken, "v1",
		`{{pct .rate}} of {{.table}} rows have no {{.column}}, far above normal, so the hashing job is likely not running.`,
		`New customers are not joinable and raw PII may remain unhashed.`,
		`Check the hashing job schedule and logs, then rerun it over {{.table}}.`)
	c.MustRegister(HashMatchPartial, "v1",
		`{{pct .match_rate}} of distinct hashes in {{.left}} are found in {{.right}}.`,
		`Partial coverage is expected when not every customer appears in both sources.`,
		`Monitor the match rate over time.`)
	c.MustRegister(HashMatchNormalization, "v1",
		`Only {{pct .match_rate}} of distinct hashes in {{.left}} are found in {{.right}}, which suggests the two hashing jobs normalize input differently (case or whitespace).`,
		`Cross-source customer matching is unreliable.`,
		`Make both jobs hash LOWER(TRIM(value)) and rehash the older table.`)
	c.MustRegister(ScheduleFrequency, "v1",
		`{{.job}} ran {{.runs}} times in the last {{.window}}, expected about {{.expected}}.`,
		`Gaps between runs leave new PII unhashed for longer.`,
		`Check the scheduler for {{.job}} and whether runs are overlapping or being skipped.`)
	c.MustRegister(ScheduleErrors, "v1",
		`{{.job}} failed {{.failures}} times in the last {{.window}}.`,
		`Failed runs leave PII unhashed.`,
		`Read the return messages of the failed runs and fix the underlying error.`)
	c.MustRegister(ScheduleStale, "v1",
		`{{.job}} last succeeded {{.minutes}} minutes ago, more than {{.max}}.`,
		`URGENT: the PII hashing job has stopped; raw personal data accumulates with every sync.`,
		`Restart the scheduler and run {{.job}} manually now.`)

	c.MustRegister(CrossSourceMismatch, "v1",
		`{{.source}} {{.entity}} differs from the warehouse on {{join .metrics ", "}} (worst {{pct .worst}}).`,
		`Reports built on the warehouse disagree with what {{.source}} bills.`,
		`Resync {{.entity}} for the period and check for attribution window or timezone differences.`)
	c.MustRegister(CrossSourceSourceEmpty, "v1",
		`{{.source}} reports no activity for {{.entity}} but the warehouse has {{join .metrics ", "}}.`,
		`There is no comparable data; the warehouse may hold rows from another account or period.`,
		`Confirm {{.entity}} is the right account and the date range matches the source timezone.`)
	c.MustRegister(CrossSourceInactive, "v1",
		`Neither {{.source}} nor the warehouse recorded activity for any entity in the period.`,
		`Nothing could be reconciled.`,
		`Widen the date range or confirm the {{.source}} accounts are active.`)

	return c
}
