/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package forecast predicts per-slot demand at campus food stalls and
// classifies live slot congestion.
package forecast

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/stallcast/internal/models"
	"github.com/friendsincode/stallcast/internal/telemetry"
)

// ResultCache stores computed forecasts and peak analyses. Live congestion is
// never cached.
type ResultCache interface {
	GetForecast(ctx context.Context, stallID, slot string, date time.Time) (ForecastResult, bool)
	SetForecast(ctx context.Context, stallID, slot string, date time.Time, result ForecastResult) error
	GetPeakAnalysis(ctx context.Context, stallID string, windowDays int, today time.Time) (PeakAnalysis, bool)
	SetPeakAnalysis(ctx context.Context, stallID string, windowDays int, today time.Time, analysis PeakAnalysis) error
}

// SlotForecast is a forecast for one slot of the catalog.
type SlotForecast struct {
	Slot  string `json:"slot"`
	Label string `json:"label"`
	ForecastResult
	ConfidencePercent int `json:"confidence_percent"`
}

// Engine bundles the four components behind one facade with tracing,
// metrics and an optional result cache.
type Engine struct {
	cfg         Config
	catalog     *models.SlotCatalog
	predictor   *Predictor
	peaks       *PeakAnalyzer
	classifier  *Classifier
	recommender *Recommender
	cache       ResultCache
	now         func() time.Time
	logger      zerolog.Logger
}

// NewEngine validates cfg and wires the components over source.
func NewEngine(source OrderSource, catalog *models.SlotCatalog, cfg Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	if catalog == nil {
		catalog = models.DefaultSlotCatalog()
	}

	classifier := NewClassifier(source, cfg, logger)
	return &Engine{
		cfg:         cfg,
		catalog:     catalog,
		predictor:   NewPredictor(source, cfg, logger),
		peaks:       NewPeakAnalyzer(source, catalog, cfg, logger),
		classifier:  classifier,
		recommender: NewRecommender(classifier, catalog),
		now:         time.Now,
		logger:      logger.With().Str("component", "forecast_engine").Logger(),
	}, nil
}

// SetCache enables result caching.
func (e *Engine) SetCache(c ResultCache) {
	e.cache = c
}

// SetClock overrides the source of "today" for the engine and peak analysis.
func (e *Engine) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	e.now = now
	e.peaks.SetClock(now)
}

// Config returns the effective tunables.
func (e *Engine) Config() Config {
	return e.cfg
}

// Catalog returns the slot catalog.
func (e *Engine) Catalog() *models.SlotCatalog {
	return e.catalog
}

// Today returns the current calendar date.
func (e *Engine) Today() time.Time {
	return DateOf(e.now())
}

// Predict forecasts demand for one slot on date.
func (e *Engine) Predict(ctx context.Context, stallID, slot string, date time.Time) ForecastResult {
	ctx, done := e.observe(ctx, "predict", stallID)
	defer done()

	date = DateOf(date)
	if e.cache != nil {
		if r, ok := e.cache.GetForecast(ctx, stallID, slot, date); ok {
			telemetry.ForecastCacheTotal.WithLabelValues("forecast", "hit").Inc()
			return r
		}
		telemetry.ForecastCacheTotal.WithLabelValues("forecast", "miss").Inc()
	}

	r := e.predictor.Predict(ctx, stallID, slot, date)

	if e.cache != nil {
		if err := e.cache.SetForecast(ctx, stallID, slot, date, r); err != nil {
			e.logger.Debug().Err(err).Msg("failed to cache forecast")
		}
	}
	return r
}

// PredictSlots forecasts every catalog slot of stallID on date.
func (e *Engine) PredictSlots(ctx context.Context, stallID string, date time.Time) []SlotForecast {
	out := make([]SlotForecast, 0, e.catalog.Len())
	for _, s := range e.catalog.Slots() {
		r := e.Predict(ctx, stallID, s.Key, date)
		out = append(out, SlotForecast{
			Slot:              s.Key,
			Label:             s.Label,
			ForecastResult:    r,
			ConfidencePercent: r.ConfidencePercent(),
		})
	}
	return out
}

// AnalyzePeakHours finds the peak slots of stallID over the trailing window.
func (e *Engine) AnalyzePeakHours(ctx context.Context, stallID string, windowDays int) PeakAnalysis {
	return e.AnalyzePeakHoursAsOf(ctx, stallID, windowDays, e.Today())
}

// AnalyzePeakHoursAsOf finds the peak slots over the window ending on asOf.
func (e *Engine) AnalyzePeakHoursAsOf(ctx context.Context, stallID string, windowDays int, asOf time.Time) PeakAnalysis {
	ctx, done := e.observe(ctx, "peak_hours", stallID)
	defer done()

	if windowDays <= 0 {
		windowDays = e.cfg.PeakWindowDays
	}
	day := DateOf(asOf)
	if e.cache != nil {
		if a, ok := e.cache.GetPeakAnalysis(ctx, stallID, windowDays, day); ok {
			telemetry.ForecastCacheTotal.WithLabelValues("peak_hours", "hit").Inc()
			return a
		}
		telemetry.ForecastCacheTotal.WithLabelValues("peak_hours", "miss").Inc()
	}

	a := e.peaks.AnalyzePeakHoursAsOf(ctx, stallID, windowDays, day)

	if e.cache != nil {
		if err := e.cache.SetPeakAnalysis(ctx, stallID, windowDays, day, a); err != nil {
			e.logger.Debug().Err(err).Msg("failed to cache peak analysis")
		}
	}
	return a
}

// Classify returns the live congestion of one slot.
func (e *Engine) Classify(ctx context.Context, stallID, slot string, date time.Time) (CongestionLevel, int) {
	ctx, done := e.observe(ctx, "classify", stallID)
	defer done()

	level, n := e.classifier.Classify(ctx, stallID, slot, date)
	if stallID != "" {
		telemetry.SlotLiveOrders.WithLabelValues(stallID, slot).Set(float64(n))
	}
	return level, n
}

// SlotLoads classifies every slot of stallID on date, in catalog order.
func (e *Engine) SlotLoads(ctx context.Context, stallID string, date time.Time) []SlotLoad {
	ctx, done := e.observe(ctx, "slot_loads", stallID)
	defer done()

	loads := e.recommender.Loads(ctx, stallID, date)
	e.recordLoads(stallID, loads)
	return loads
}

// Recommend ranks the slots of stallID on date from least to most loaded.
func (e *Engine) Recommend(ctx context.Context, stallID string, date time.Time) []SlotLoad {
	ctx, done := e.observe(ctx, "recommend", stallID)
	defer done()

	loads := e.recommender.Loads(ctx, stallID, date)
	e.recordLoads(stallID, loads)
	return RankLoads(loads)
}

func (e *Engine) recordLoads(stallID string, loads []SlotLoad) {
	if stallID == "" {
		return
	}
	for _, l := range loads {
		telemetry.SlotLiveOrders.WithLabelValues(stallID, l.Slot).Set(float64(l.CurrentCount))
	}
}

func (e *Engine) observe(ctx context.Context, operation, stallID string) (context.Context, func()) {
	start := time.Now()
	ctx, span := telemetry.StartOperation(ctx, "forecast", operation, telemetry.StallAttributes(stallID, "", time.Time{})...)
	telemetry.ForecastOperationsTotal.WithLabelValues(operation).Inc()
	return ctx, func() {
		telemetry.ForecastOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		span.End()
	}
}
