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

// PeakAnalysis summarizes per-slot demand over a trailing window.
type PeakAnalysis struct {
	SlotCounts map[string]int `json:"slot_counts"`
	PeakSlots  []string       `json:"peak_slots"`
	WindowDays int            `json:"window_days"`
	From       time.Time      `json:"from"`
	To         time.Time      `json:"to"`
}

// IsPeak reports whether slot was classified as a peak.
func (a PeakAnalysis) IsPeak(slot string) bool {
	for _, s := range a.PeakSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// PeakAnalyzer finds the slots that run close to a stall's busiest slot.
type PeakAnalyzer struct {
	source  OrderSource
	catalog *models.SlotCatalog
	cfg     Config
	now     func() time.Time
	logger  zerolog.Logger
}

// NewPeakAnalyzer creates a peak analyzer over the slots in catalog.
func NewPeakAnalyzer(source OrderSource, catalog *models.SlotCatalog, cfg Config, logger zerolog.Logger) *PeakAnalyzer {
	if catalog == nil {
		catalog = models.DefaultSlotCatalog()
	}
	return &PeakAnalyzer{
		source:  source,
		catalog: catalog,
		cfg:     cfg.WithDefaults(),
		now:     time.Now,
		logger:  logger.With().Str("component", "peak_analyzer").Logger(),
	}
}

// SetClock overrides the source of "today".
func (a *PeakAnalyzer) SetClock(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

// AnalyzePeakHours counts demand per slot over [today-windowDays, today] and
// marks every slot reaching PeakThreshold of the busiest one. A non-positive
// windowDays uses the configured default. Slots without orders are omitted
// from SlotCounts.
func (a *PeakAnalyzer) AnalyzePeakHours(ctx context.Context, stallID string, windowDays int) PeakAnalysis {
	return a.AnalyzePeakHoursAsOf(ctx, stallID, windowDays, a.now())
}

// AnalyzePeakHoursAsOf is AnalyzePeakHours with the window ending on asOf
// instead of today.
func (a *PeakAnalyzer) AnalyzePeakHoursAsOf(ctx context.Context, stallID string, windowDays int, asOf time.Time) PeakAnalysis {
	if windowDays <= 0 {
		windowDays = a.cfg.PeakWindowDays
	}
	end := DateOf(asOf)
	from := end.AddDate(0, 0, -windowDays)

	q := CountQuery{
		StallID:  stallID,
		From:     from,
		To:       end,
		Statuses: models.DemandStatuses(),
	}
	counts := a.slotCounts(ctx, q)

	return PeakAnalysis{
		SlotCounts: counts,
		PeakSlots:  PeakSlots(counts, a.catalog, a.cfg),
		WindowDays: windowDays,
		From:       from,
		To:         end,
	}
}

// slotCounts returns non-zero demand per catalog slot.
func (a *PeakAnalyzer) slotCounts(ctx context.Context, q CountQuery) map[string]int {
	counts := make(map[string]int)

	if grouped, ok := a.source.(SlotCounter); ok {
		bySlot, err := grouped.CountBySlot(ctx, q)
		if err == nil {
			for slot, n := range bySlot {
				if n > 0 && a.catalog.Has(slot) {
					counts[slot] = int(n)
				}
			}
			return counts
		}
		telemetry.ForecastStoreErrorsTotal.Inc()
		a.logger.Warn().Err(err).Str("stall_id", q.StallID).Msg("grouped slot count failed, treating as no data")
		return counts
	}

	for _, slot := range a.catalog.Keys() {
		sq := q
		sq.Slot = slot
		if n := count(ctx, a.source, sq, a.logger); n > 0 {
			counts[slot] = n
		}
	}
	return counts
}

// PeakSlots returns the slots with count >= PeakThreshold * max, in catalog
// order. Slots unknown to the catalog follow in no particular order.
func PeakSlots(counts map[string]int, catalog *models.SlotCatalog, cfg Config) []string {
	cfg = cfg.WithDefaults()
	if len(counts) == 0 {
		return []string{}
	}

	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}
	threshold := cfg.PeakThreshold * float64(maxCount)

	peaks := make([]string, 0, len(counts))
	seen := make(map[string]bool, len(counts))
	if catalog != nil {
		for _, slot := range catalog.Keys() {
			c, ok := counts[slot]
			if ok && float64(c) >= threshold {
				peaks = append(peaks, slot)
			}
			seen[slot] = true
		}
	}
	for slot, c := range counts {
		if !seen[slot] && float64(c) >= threshold {
			peaks = append(peaks, slot)
		}
	}
	return peaks
}
