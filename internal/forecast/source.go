/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package forecast

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/stallcast/internal/models"
	"github.com/friendsincode/stallcast/internal/telemetry"
)

// CountQuery selects orders of one stall. Empty Slot matches every slot; zero
// From/To leave that side of the pickup date range open. Both bounds are
// inclusive and compared as calendar dates.
type CountQuery struct {
	StallID  string
	Slot     string
	From     time.Time
	To       time.Time
	Statuses []models.OrderStatus
}

// OnDate restricts the query to a single pickup date.
func (q CountQuery) OnDate(d time.Time) CountQuery {
	d = DateOf(d)
	q.From, q.To = d, d
	return q
}

// OrderSource is the read-only view of the order store the engine builds on.
type OrderSource interface {
	CountOrders(ctx context.Context, q CountQuery) (int64, error)
}

// SlotCounter is implemented by stores that can group counts by slot in one
// query. Peak analysis prefers it over one CountOrders call per slot.
type SlotCounter interface {
	CountBySlot(ctx context.Context, q CountQuery) (map[string]int64, error)
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD value, falling back to DateOf(fallback) when
// the value is empty or malformed.
func ParseDate(value string, fallback time.Time) time.Time {
	if value != "" {
		if t, err := time.Parse("2006-01-02", value); err == nil {
			return t
		}
	}
	return DateOf(fallback)
}

// count runs q and resolves failures to zero. The engine never surfaces store
// errors to callers.
func count(ctx context.Context, source OrderSource, q CountQuery, logger zerolog.Logger) int {
	if source == nil {
		return 0
	}
	n, err := source.CountOrders(ctx, q)
	if err != nil {
		telemetry.ForecastStoreErrorsTotal.Inc()
		logger.Warn().Err(err).
			Str("stall_id", q.StallID).
			Str("slot", q.Slot).
			Msg("order count failed, treating as no data")
		return 0
	}
	if n < 0 {
		return 0
	}
	return int(n)
}
