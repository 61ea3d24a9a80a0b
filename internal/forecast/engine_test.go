/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package forecast

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/stallcast/internal/models"
)

type mapCache struct {
	forecasts map[string]ForecastResult
	peaks     map[string]PeakAnalysis
}

func newMapCache() *mapCache {
	return &mapCache{forecasts: map[string]ForecastResult{}, peaks: map[string]PeakAnalysis{}}
}

func (c *mapCache) GetForecast(_ context.Context, stallID, slot string, date time.Time) (ForecastResult, bool) {
	r, ok := c.forecasts[fmt.Sprintf("%s|%s|%s", stallID, slot, date.Format("2006-01-02"))]
	return r, ok
}

func (c *mapCache) SetForecast(_ context.Context, stallID, slot string, date time.Time, r ForecastResult) error {
	c.forecasts[fmt.Sprintf("%s|%s|%s", stallID, slot, date.Format("2006-01-02"))] = r
	return nil
}

func (c *mapCache) GetPeakAnalysis(_ context.Context, stallID string, windowDays int, today time.Time) (PeakAnalysis, bool) {
	a, ok := c.peaks[fmt.Sprintf("%s|%d|%s", stallID, windowDays, today.Format("2006-01-02"))]
	return a, ok
}

func (c *mapCache) SetPeakAnalysis(_ context.Context, stallID string, windowDays int, today time.Time, a PeakAnalysis) error {
	c.peaks[fmt.Sprintf("%s|%d|%s", stallID, windowDays, today.Format("2006-01-02"))] = a
	return nil
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	_, err := NewEngine(&fakeSource{}, nil, Config{MediumRatio: 0.9, HighRatio: 0.5}, zerolog.Nop())
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEngineCachesForecastsButNotCongestion(t *testing.T) {
	src := &fakeSource{}
	src.add("stall-a", "12:00", monday.AddDate(0, 0, -7), models.OrderCompleted, 3)
	src.add("stall-a", "12:00", monday, models.OrderPending, 2)

	e, err := NewEngine(src, nil, DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	e.SetCache(newMapCache())
	e.SetClock(func() time.Time { return monday })

	first := e.Predict(context.Background(), "stall-a", "12:00", monday)
	calls := src.calls
	second := e.Predict(context.Background(), "stall-a", "12:00", monday)
	assert.Equal(t, first, second)
	assert.Equal(t, calls, src.calls, "cached forecast must not hit the store")

	e.Classify(context.Background(), "stall-a", "12:00", monday)
	e.Classify(context.Background(), "stall-a", "12:00", monday)
	assert.Equal(t, calls+2, src.calls)

	e.AnalyzePeakHours(context.Background(), "stall-a", 0)
	calls = src.calls
	e.AnalyzePeakHours(context.Background(), "stall-a", 0)
	assert.Equal(t, calls, src.calls)
}

func TestEnginePredictSlots(t *testing.T) {
	src := &fakeSource{}
	for i, n := range []int{10, 8, 6, 4} {
		src.add("stall-a", "13:00", monday.AddDate(0, 0, -7*(i+1)), models.OrderCompleted, n)
	}

	e, err := NewEngine(src, nil, DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)

	got := e.PredictSlots(context.Background(), "stall-a", monday)
	require.Len(t, got, 4)
	assert.Equal(t, "13:00", got[2].Slot)
	assert.Equal(t, 8, got[2].PredictedQuantity)
	assert.Equal(t, 68, got[2].ConfidencePercent)
	assert.Equal(t, 0, got[0].PredictedQuantity)
}

func TestEngineToday(t *testing.T) {
	e, err := NewEngine(&fakeSource{}, nil, Config{}, zerolog.Nop())
	require.NoError(t, err)
	e.SetClock(func() time.Time { return time.Date(2026, 10, 19, 23, 59, 0, 0, time.UTC) })
	assert.Equal(t, monday, e.Today())
	assert.Equal(t, DefaultMaxCapacity, e.Config().MaxCapacity)
}
