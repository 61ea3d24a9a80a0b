/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package report

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/stallcast/internal/analytics"
	"github.com/friendsincode/stallcast/internal/config"
	"github.com/friendsincode/stallcast/internal/models"
	"github.com/friendsincode/stallcast/internal/storage"
)

var day = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func sampleSnapshot() *analytics.Snapshot {
	return &analytics.Snapshot{
		Day:        day,
		TargetDate: day.AddDate(0, 0, 1),
		Forecasts: []models.DemandForecast{
			{Slot: "10:00", PredictedQuantity: 3},
			{Slot: "12:00", PredictedQuantity: 8, ConfidenceScore: 0.68},
		},
		Analytics: []models.OrderAnalytics{
			{Slot: "10:00", TotalOrders: 2, TotalRevenue: 45},
			{Slot: "12:00", TotalOrders: 11, TotalRevenue: 180.5, PeakHour: true},
		},
		Backfilled: 1,
	}
}

func TestBuildTotals(t *testing.T) {
	r := Build(sampleSnapshot(), day.Add(23*time.Hour))

	assert.Equal(t, "2026-10-19", r.Day)
	assert.Equal(t, "2026-10-20", r.TargetDate)
	assert.Equal(t, 11, r.Totals.PredictedOrders)
	assert.Equal(t, 13, r.Totals.ActualOrders)
	assert.Equal(t, 225.5, r.Totals.Revenue)
	assert.Equal(t, 1, r.Totals.PeakSlots)
}

func TestExportToFilesystem(t *testing.T) {
	store, err := storage.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	e := NewExporter(store, "fs", zerolog.Nop())
	location, err := e.Export(context.Background(), sampleSnapshot())
	require.NoError(t, err)

	_, err = os.Stat(location)
	require.NoError(t, err)

	loaded, err := e.Load(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 11, loaded.Totals.PredictedOrders)
	require.Len(t, loaded.Snapshot.Forecasts, 2)
	assert.Equal(t, 0.68, loaded.Snapshot.Forecasts[1].ConfidenceScore)
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte) error { return errors.New("disk full") }
func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, storage.ErrNotFound
}
func (failingStore) Location(key string) string { return key }

func TestExportSurfacesStoreErrors(t *testing.T) {
	e := NewExporter(failingStore{}, "fs", zerolog.Nop())
	_, err := e.Export(context.Background(), sampleSnapshot())
	assert.ErrorContains(t, err, "disk full")

	_, err = e.Load(context.Background(), day)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFromConfigPicksSink(t *testing.T) {
	ctx := context.Background()

	exp, err := FromConfig(ctx, &config.Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, exp, "no sink configured")

	dir := t.TempDir()
	exp, err = FromConfig(ctx, &config.Config{ReportDir: dir}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, exp)
	assert.Equal(t, "fs", exp.sink)

	exp, err = FromConfig(ctx, &config.Config{ReportDir: dir, S3Bucket: "reports", S3Region: "us-east-1"}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, exp)
	assert.Equal(t, "s3", exp.sink)
}
