/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package report exports snapshot reports to object storage.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/stallcast/internal/analytics"
	"github.com/friendsincode/stallcast/internal/storage"
	"github.com/friendsincode/stallcast/internal/telemetry"
)

// Report is the exported document.
type Report struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Day         string              `json:"day"`
	TargetDate  string              `json:"target_date"`
	Totals      Totals              `json:"totals"`
	Snapshot    *analytics.Snapshot `json:"snapshot"`
}

// Totals summarises a snapshot.
type Totals struct {
	PredictedOrders int     `json:"predicted_orders"`
	ActualOrders    int     `json:"actual_orders"`
	Revenue         float64 `json:"revenue"`
	PeakSlots       int     `json:"peak_slots"`
}

// Exporter writes snapshots as JSON documents. It satisfies analytics.Exporter.
type Exporter struct {
	store  storage.ObjectStore
	sink   string
	logger zerolog.Logger
	now    func() time.Time
}

var _ analytics.Exporter = (*Exporter)(nil)

// NewExporter creates an exporter. sink labels metrics, e.g. "fs" or "s3".
func NewExporter(store storage.ObjectStore, sink string, logger zerolog.Logger) *Exporter {
	return &Exporter{
		store:  store,
		sink:   sink,
		logger: logger.With().Str("component", "report").Str("sink", sink).Logger(),
		now:    time.Now,
	}
}

// Key is the object key of the report for day.
func Key(day time.Time) string {
	return "snapshots/" + day.Format("2006-01-02") + ".json"
}

// Build assembles the report document.
func Build(snap *analytics.Snapshot, generatedAt time.Time) Report {
	r := Report{
		GeneratedAt: generatedAt.UTC(),
		Day:         snap.Day.Format("2006-01-02"),
		TargetDate:  snap.TargetDate.Format("2006-01-02"),
		Snapshot:    snap,
	}
	for _, f := range snap.Forecasts {
		r.Totals.PredictedOrders += f.PredictedQuantity
	}
	for _, a := range snap.Analytics {
		r.Totals.ActualOrders += a.TotalOrders
		r.Totals.Revenue += a.TotalRevenue
		if a.PeakHour {
			r.Totals.PeakSlots++
		}
	}
	return r
}

// Export writes the report and returns its location.
func (e *Exporter) Export(ctx context.Context, snap *analytics.Snapshot) (string, error) {
	data, err := json.MarshalIndent(Build(snap, e.now()), "", "  ")
	if err != nil {
		telemetry.ReportExportsTotal.WithLabelValues(e.sink, "error").Inc()
		return "", fmt.Errorf("encode report: %w", err)
	}

	key := Key(snap.Day)
	if err := e.store.Put(ctx, key, data); err != nil {
		telemetry.ReportExportsTotal.WithLabelValues(e.sink, "error").Inc()
		return "", fmt.Errorf("store report: %w", err)
	}

	telemetry.ReportExportsTotal.WithLabelValues(e.sink, "ok").Inc()
	location := e.store.Location(key)
	e.logger.Info().Str("location", location).Int("bytes", len(data)).Msg("report exported")
	return location, nil
}

// Load reads a previously exported report.
func (e *Exporter) Load(ctx context.Context, day time.Time) (*Report, error) {
	data, err := e.store.Get(ctx, Key(day))
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}
