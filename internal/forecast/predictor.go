/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package forecast

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/stallcast/internal/models"
)

// ForecastResult is a point prediction of order volume with a confidence in [0,1].
type ForecastResult struct {
	PredictedQuantity int     `json:"predicted_quantity"`
	Confidence        float64 `json:"confidence"`
}

// ConfidencePercent returns the confidence as a whole percentage.
func (r ForecastResult) ConfidencePercent() int {
	return int(math.Round(r.Confidence * 100))
}

// Predictor estimates how many orders a stall will receive in a slot on a
// given date from the same weekday in the preceding weeks.
type Predictor struct {
	source OrderSource
	cfg    Config
	logger zerolog.Logger
}

// NewPredictor creates a predictor over source.
func NewPredictor(source OrderSource, cfg Config, logger zerolog.Logger) *Predictor {
	return &Predictor{
		source: source,
		cfg:    cfg.WithDefaults(),
		logger: logger.With().Str("component", "predictor").Logger(),
	}
}

// Predict forecasts demand for stallID in slot on target. Store failures are
// logged and treated as zero history.
func (p *Predictor) Predict(ctx context.Context, stallID, slot string, target time.Time) ForecastResult {
	return WeightedForecast(p.History(ctx, stallID, slot, target), p.cfg)
}

// History returns demand counts for the same weekday 1..len(Weights) weeks
// before target, most recent first.
func (p *Predictor) History(ctx context.Context, stallID, slot string, target time.Time) []int {
	target = DateOf(target)
	counts := make([]int, 0, len(p.cfg.Weights))
	for weeksBack := 1; weeksBack <= len(p.cfg.Weights); weeksBack++ {
		day := target.AddDate(0, 0, -7*weeksBack)
		q := CountQuery{
			StallID:  stallID,
			Slot:     slot,
			Statuses: models.DemandStatuses(),
		}.OnDate(day)
		counts = append(counts, count(ctx, p.source, q, p.logger))
	}
	return counts
}

// WeightedForecast combines per-week counts (most recent first) into a
// forecast. Weights are truncated to the number of data points.
func WeightedForecast(counts []int, cfg Config) ForecastResult {
	cfg = cfg.WithDefaults()

	n := len(counts)
	if n > len(cfg.Weights) {
		n = len(cfg.Weights)
	}
	counts = counts[:n]

	total := 0
	for _, c := range counts {
		total += c
	}
	if n == 0 || total == 0 {
		return ForecastResult{}
	}

	var weightedSum, weightTotal float64
	for i, c := range counts {
		w := float64(cfg.Weights[i])
		weightedSum += float64(c) * w
		weightTotal += w
	}

	return ForecastResult{
		PredictedQuantity: int(math.RoundToEven(weightedSum / weightTotal)),
		Confidence:        Confidence(counts, cfg),
	}
}

// Confidence is 1 minus the coefficient of variation of counts, clamped to
// [0,1] and rounded to two decimals.
func Confidence(counts []int, cfg Config) float64 {
	cfg = cfg.WithDefaults()
	if len(counts) < cfg.MinDataPoints {
		return cfg.LowDataConfidence
	}

	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	mean := sum / float64(len(counts))
	if mean == 0 {
		return cfg.ZeroMeanConfidence
	}

	var sq float64
	for _, c := range counts {
		d := float64(c) - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / float64(len(counts)))

	conf := 1 - stddev/mean
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return math.Round(conf*100) / 100
}
