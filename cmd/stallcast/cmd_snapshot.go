/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/stallcast/internal/analytics"
	"github.com/friendsincode/stallcast/internal/db"
	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/orderstore"
	"github.com/friendsincode/stallcast/internal/report"
)

var (
	snapshotDate   string
	snapshotExport bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Persist forecasts and daily rollups once",
	Long: `Runs the snapshot job a single time: forecasts for the day after --date are
stored for every open stall, --date is rolled up per slot, and actual order
counts are backfilled into earlier forecasts. The serve command runs the same
job on an interval.

Examples:
  stallcast snapshot
  stallcast snapshot --date 2026-10-19 --export`,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotDate, "date", "", "Day to roll up YYYY-MM-DD (default today)")
	snapshotCmd.Flags().BoolVar(&snapshotExport, "export", false, "Write the report to the configured S3 bucket or report directory")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	engine, err := newEngine(database)
	if err != nil {
		return err
	}

	ctx := context.Background()
	day := forecast.ParseDate(snapshotDate, time.Now())
	svc := analytics.NewSnapshotService(database, engine, orderstore.NewGormStore(database), logger)

	snap, err := svc.Run(ctx, day)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	totals := report.Build(snap, time.Now()).Totals
	renderTable(os.Stdout, fmt.Sprintf("Snapshot %s", day.Format("2006-01-02")), []string{"Metric", "Value"}, [][]string{
		{"Forecast rows for " + snap.TargetDate.Format("2006-01-02"), strconv.Itoa(len(snap.Forecasts))},
		{"Predicted orders", strconv.Itoa(totals.PredictedOrders)},
		{"Rollup rows", strconv.Itoa(len(snap.Analytics))},
		{"Orders on day", strconv.Itoa(totals.ActualOrders)},
		{"Revenue", fmt.Sprintf("%.2f", totals.Revenue)},
		{"Peak slots", strconv.Itoa(totals.PeakSlots)},
		{"Forecasts backfilled", strconv.Itoa(snap.Backfilled)},
	}, -1)

	if !snapshotExport {
		return nil
	}
	exporter, err := report.FromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if exporter == nil {
		return fmt.Errorf("--export needs STALLCAST_S3_BUCKET or STALLCAST_REPORT_DIR")
	}
	location, err := exporter.Export(ctx, snap)
	if err != nil {
		return fmt.Errorf("export report: %w", err)
	}
	renderNote(os.Stdout, "Report written to %s", location)
	return nil
}
