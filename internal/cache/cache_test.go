/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/stallcast/internal/forecast"
)

func TestUnreachableRedisDisablesCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	c, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.IsAvailable())

	ctx := context.Background()
	date := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.SetForecast(ctx, "stall-1", "12:00", date, forecast.ForecastResult{PredictedQuantity: 8, Confidence: 0.68}))
	_, ok := c.GetForecast(ctx, "stall-1", "12:00", date)
	assert.False(t, ok, "disabled cache must always miss")

	_, ok = c.GetPeakAnalysis(ctx, "stall-1", 30, date)
	assert.False(t, ok)
	assert.NoError(t, c.InvalidateStall(ctx, "stall-1"))
	assert.NoError(t, c.FlushAll(ctx))
}

func TestKeysUseCalendarDate(t *testing.T) {
	morning := time.Date(2026, 10, 20, 8, 30, 0, 0, time.UTC)
	evening := time.Date(2026, 10, 20, 22, 0, 0, 0, time.UTC)

	assert.Equal(t, ForecastKey("s", "12:00", morning), ForecastKey("s", "12:00", evening))
	assert.Equal(t, "stallcast:cache:forecast:s:12:00:2026-10-20", ForecastKey("s", "12:00", morning))
	assert.Equal(t, "stallcast:cache:peak:s:30:2026-10-20", PeakKey("s", 30, evening))
}
