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
)

// CongestionLevel buckets live slot load.
type CongestionLevel string

const (
	CongestionLow    CongestionLevel = "low"
	CongestionMedium CongestionLevel = "medium"
	CongestionHigh   CongestionLevel = "high"
)

// Classifier buckets a slot's live load against stall capacity.
type Classifier struct {
	source OrderSource
	cfg    Config
	logger zerolog.Logger
}

// NewClassifier creates a congestion classifier over source.
func NewClassifier(source OrderSource, cfg Config, logger zerolog.Logger) *Classifier {
	return &Classifier{
		source: source,
		cfg:    cfg.WithDefaults(),
		logger: logger.With().Str("component", "congestion").Logger(),
	}
}

// Classify returns the congestion level and the live order count for stallID
// in slot on date. An empty stallID short-circuits to (low, 0).
func (c *Classifier) Classify(ctx context.Context, stallID, slot string, date time.Time) (CongestionLevel, int) {
	if stallID == "" {
		return CongestionLow, 0
	}
	q := CountQuery{
		StallID:  stallID,
		Slot:     slot,
		Statuses: models.LiveLoadStatuses(),
	}.OnDate(date)
	n := count(ctx, c.source, q, c.logger)
	return LevelFor(n, c.cfg), n
}

// LevelFor maps a live count to a level using the configured ratios.
func LevelFor(count int, cfg Config) CongestionLevel {
	cfg = cfg.WithDefaults()
	ratio := float64(count) / float64(cfg.MaxCapacity)
	switch {
	case ratio < cfg.MediumRatio:
		return CongestionLow
	case ratio < cfg.HighRatio:
		return CongestionMedium
	default:
		return CongestionHigh
	}
}
