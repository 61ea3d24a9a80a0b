/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package analytics persists forecast snapshots and daily per-slot rollups.
package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/models"
	"github.com/friendsincode/stallcast/internal/telemetry"
)

// Forecaster is the part of the forecast engine snapshots need.
type Forecaster interface {
	PredictSlots(ctx context.Context, stallID string, date time.Time) []forecast.SlotForecast
	AnalyzePeakHoursAsOf(ctx context.Context, stallID string, windowDays int, asOf time.Time) forecast.PeakAnalysis
}

// Snapshot is the outcome of one run.
type Snapshot struct {
	Day        time.Time               `json:"day"`
	TargetDate time.Time               `json:"target_date"`
	Forecasts  []models.DemandForecast `json:"forecasts"`
	Analytics  []models.OrderAnalytics `json:"analytics"`
	Backfilled int                     `json:"backfilled"`
}

// SnapshotService writes DemandForecast and OrderAnalytics rows.
type SnapshotService struct {
	db         *gorm.DB
	forecaster Forecaster
	source     forecast.OrderSource
	logger     zerolog.Logger

	// backfillDays bounds how far back actual quantities are refreshed.
	backfillDays int
}

// NewSnapshotService creates a new snapshot service.
func NewSnapshotService(db *gorm.DB, forecaster Forecaster, source forecast.OrderSource, logger zerolog.Logger) *SnapshotService {
	return &SnapshotService{
		db:           db,
		forecaster:   forecaster,
		source:       source,
		logger:       logger.With().Str("component", "snapshot").Logger(),
		backfillDays: 14,
	}
}

// Run snapshots forecasts for the day after day, rolls up day's orders and
// backfills actual quantities of forecasts up to and including day.
func (s *SnapshotService) Run(ctx context.Context, day time.Time) (snap *Snapshot, err error) {
	day = forecast.DateOf(day)
	ctx, span := telemetry.StartOperation(ctx, "snapshot", "run", telemetry.StallAttributes("", "", day)...)
	defer func() { telemetry.EndSpan(span, err) }()

	snap = &Snapshot{Day: day, TargetDate: day.AddDate(0, 0, 1)}

	stalls, err := s.openStalls(ctx)
	if err != nil {
		telemetry.SnapshotRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	for _, stall := range stalls {
		rows, err := s.SnapshotForecasts(ctx, stall.ID, snap.TargetDate)
		if err != nil {
			telemetry.SnapshotRunsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		snap.Forecasts = append(snap.Forecasts, rows...)

		daily, err := s.AggregateDaily(ctx, stall.ID, day)
		if err != nil {
			telemetry.SnapshotRunsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		snap.Analytics = append(snap.Analytics, daily...)
	}

	n, err := s.BackfillActuals(ctx, day.AddDate(0, 0, -s.backfillDays), day)
	if err != nil {
		telemetry.SnapshotRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	snap.Backfilled = n

	telemetry.SnapshotRunsTotal.WithLabelValues("ok").Inc()
	s.logger.Info().
		Time("day", day).
		Int("stalls", len(stalls)).
		Int("forecasts", len(snap.Forecasts)).
		Int("analytics", len(snap.Analytics)).
		Int("backfilled", n).
		Msg("snapshot completed")
	return snap, nil
}

func (s *SnapshotService) openStalls(ctx context.Context) ([]models.Stall, error) {
	var stalls []models.Stall
	if err := s.db.WithContext(ctx).Where("is_open = ?", true).Order("name").Find(&stalls).Error; err != nil {
		return nil, fmt.Errorf("load stalls: %w", err)
	}
	return stalls, nil
}

// SnapshotForecasts upserts one DemandForecast per slot for stallID on date.
func (s *SnapshotService) SnapshotForecasts(ctx context.Context, stallID string, date time.Time) ([]models.DemandForecast, error) {
	date = forecast.DateOf(date)
	now := time.Now().UTC()

	predictions := s.forecaster.PredictSlots(ctx, stallID, date)
	if len(predictions) == 0 {
		return nil, nil
	}

	upserts := make([]models.DemandForecast, 0, len(predictions))
	for _, p := range predictions {
		upserts = append(upserts, models.DemandForecast{
			ID:                uuid.NewString(),
			StallID:           stallID,
			Slot:              p.Slot,
			ForecastDate:      date,
			DayOfWeek:         models.ISOWeekday(date),
			PredictedQuantity: p.PredictedQuantity,
			ConfidenceScore:   p.Confidence,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "stall_id"},
			{Name: "slot"},
			{Name: "forecast_date"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			"day_of_week":        gorm.Expr("excluded.day_of_week"),
			"predicted_quantity": gorm.Expr("excluded.predicted_quantity"),
			"confidence_score":   gorm.Expr("excluded.confidence_score"),
			"updated_at":         gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&upserts).Error; err != nil {
		return nil, fmt.Errorf("forecast snapshot upsert: %w", err)
	}
	telemetry.SnapshotRowsWritten.WithLabelValues("demand_forecasts").Add(float64(len(upserts)))

	var stored []models.DemandForecast
	if err := s.db.WithContext(ctx).
		Where("stall_id = ? AND forecast_date = ?", stallID, date).
		Find(&stored).Error; err != nil {
		return nil, fmt.Errorf("reload forecasts: %w", err)
	}
	return sortByCatalog(stored, predictions), nil
}

func sortByCatalog(rows []models.DemandForecast, order []forecast.SlotForecast) []models.DemandForecast {
	bySlot := make(map[string]models.DemandForecast, len(rows))
	for _, r := range rows {
		bySlot[r.Slot] = r
	}
	out := make([]models.DemandForecast, 0, len(rows))
	for _, p := range order {
		if r, ok := bySlot[p.Slot]; ok {
			out = append(out, r)
		}
	}
	return out
}

// AggregateDaily upserts one OrderAnalytics row per slot that had demand on day.
func (s *SnapshotService) AggregateDaily(ctx context.Context, stallID string, day time.Time) ([]models.OrderAnalytics, error) {
	day = forecast.DateOf(day)
	now := time.Now().UTC()

	var orders []models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items.MenuItem").
		Where("stall_id = ? AND pickup_date = ? AND status IN ?", stallID, day, statusStrings(models.DemandStatuses())).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("load orders for rollup: %w", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}

	type acc struct {
		orders  int
		revenue float64
		prep    int
	}
	bySlot := make(map[string]*acc)
	var slots []string
	for _, o := range orders {
		a, ok := bySlot[o.Slot]
		if !ok {
			a = &acc{}
			bySlot[o.Slot] = a
			slots = append(slots, o.Slot)
		}
		a.orders++
		a.revenue += o.TotalAmount
		for _, item := range o.Items {
			if item.MenuItem != nil {
				a.prep += item.MenuItem.PrepTimeMinutes * item.Quantity
			}
		}
	}

	peaks := s.forecaster.AnalyzePeakHoursAsOf(ctx, stallID, 0, day)

	upserts := make([]models.OrderAnalytics, 0, len(slots))
	for _, slot := range slots {
		a := bySlot[slot]
		upserts = append(upserts, models.OrderAnalytics{
			ID:           uuid.NewString(),
			StallID:      stallID,
			Date:         day,
			Slot:         slot,
			TotalOrders:  a.orders,
			TotalRevenue: round2(a.revenue),
			AvgPrepTime:  round2(float64(a.prep) / float64(a.orders)),
			PeakHour:     peaks.IsPeak(slot),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "stall_id"},
			{Name: "date"},
			{Name: "slot"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			"total_orders":  gorm.Expr("excluded.total_orders"),
			"total_revenue": gorm.Expr("excluded.total_revenue"),
			"avg_prep_time": gorm.Expr("excluded.avg_prep_time"),
			"peak_hour":     gorm.Expr("excluded.peak_hour"),
			"updated_at":    gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&upserts).Error; err != nil {
		return nil, fmt.Errorf("daily analytics upsert: %w", err)
	}
	telemetry.SnapshotRowsWritten.WithLabelValues("order_analytics").Add(float64(len(upserts)))

	s.logger.Debug().
		Str("stall_id", stallID).
		Time("date", day).
		Int("rows", len(upserts)).
		Msg("daily order analytics aggregated")
	return upserts, nil
}

// BackfillActuals sets actual_quantity on forecasts dated within [from, to].
func (s *SnapshotService) BackfillActuals(ctx context.Context, from, to time.Time) (int, error) {
	from, to = forecast.DateOf(from), forecast.DateOf(to)
	if to.Before(from) {
		from, to = to, from
	}

	var rows []models.DemandForecast
	if err := s.db.WithContext(ctx).
		Where("forecast_date >= ? AND forecast_date <= ?", from, to).
		Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("load forecasts for backfill: %w", err)
	}

	updated := 0
	for _, r := range rows {
		n, err := s.source.CountOrders(ctx, forecast.CountQuery{
			StallID:  r.StallID,
			Slot:     r.Slot,
			Statuses: models.DemandStatuses(),
		}.OnDate(r.ForecastDate))
		if err != nil {
			return updated, fmt.Errorf("count actual orders: %w", err)
		}
		if int(n) == r.ActualQuantity {
			continue
		}
		if err := s.db.WithContext(ctx).Model(&models.DemandForecast{}).
			Where("id = ?", r.ID).
			Update("actual_quantity", n).Error; err != nil {
			return updated, fmt.Errorf("update actual quantity: %w", err)
		}
		updated++
	}
	return updated, nil
}

// BackfillDaily runs AggregateDaily for each date in [start, end] inclusive.
func (s *SnapshotService) BackfillDaily(ctx context.Context, stallID string, start, end time.Time) error {
	startDay, endDay := forecast.DateOf(start), forecast.DateOf(end)
	if endDay.Before(startDay) {
		startDay, endDay = endDay, startDay
	}

	for d := startDay; !d.After(endDay); d = d.AddDate(0, 0, 1) {
		if _, err := s.AggregateDaily(ctx, stallID, d); err != nil {
			return err
		}
	}
	return nil
}

// Accuracy compares stored predictions with what was actually ordered.
type Accuracy struct {
	StallID           string                  `json:"stall_id"`
	From              time.Time               `json:"from"`
	To                time.Time               `json:"to"`
	Samples           int                     `json:"samples"`
	MeanAbsoluteError float64                 `json:"mean_absolute_error"`
	Rows              []models.DemandForecast `json:"rows"`
}

// ForecastAccuracy returns backfilled forecasts of stallID in [from, to].
func (s *SnapshotService) ForecastAccuracy(ctx context.Context, stallID string, from, to time.Time) (*Accuracy, error) {
	from, to = forecast.DateOf(from), forecast.DateOf(to)
	acc := &Accuracy{StallID: stallID, From: from, To: to}

	if err := s.db.WithContext(ctx).
		Where("stall_id = ? AND forecast_date >= ? AND forecast_date <= ?", stallID, from, to).
		Order("forecast_date, slot").
		Find(&acc.Rows).Error; err != nil {
		return nil, fmt.Errorf("load forecasts: %w", err)
	}

	var sum float64
	for _, r := range acc.Rows {
		sum += math.Abs(float64(r.PredictedQuantity - r.ActualQuantity))
	}
	acc.Samples = len(acc.Rows)
	if acc.Samples > 0 {
		acc.MeanAbsoluteError = round2(sum / float64(acc.Samples))
	}
	return acc, nil
}

func statusStrings(statuses []models.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
