/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analytics

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/stallcast/internal/events"
	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/leadership"
)

// Exporter ships a finished snapshot somewhere durable and returns its location.
type Exporter interface {
	Export(ctx context.Context, snap *Snapshot) (string, error)
}

// Scheduler runs snapshots periodically on the leader instance.
type Scheduler struct {
	service  *SnapshotService
	gate     leadership.Gate
	exporter Exporter
	bus      events.Broker
	logger   zerolog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewScheduler creates a snapshot scheduler. gate nil means always run.
func NewScheduler(service *SnapshotService, gate leadership.Gate, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if gate == nil {
		gate = leadership.AlwaysLeader{}
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		service:  service,
		gate:     gate,
		logger:   logger.With().Str("component", "snapshot_scheduler").Logger(),
		interval: interval,
		now:      time.Now,
	}
}

// SetExporter exports every snapshot after it is written.
func (s *Scheduler) SetExporter(e Exporter) {
	s.exporter = e
}

// SetEventBus announces finished snapshots on bus.
func (s *Scheduler) SetEventBus(bus events.Broker) {
	s.bus = bus
}

// SetClock overrides the wall clock.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start runs snapshots until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("snapshot scheduler started")

	// Run once immediately so rows appear quickly after startup.
	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("snapshot scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one snapshot if this instance leads. It reports whether a
// snapshot was written.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.gate.IsLeader() {
		s.logger.Debug().Msg("not leader, skipping snapshot")
		return false
	}

	snap, err := s.service.Run(ctx, forecast.DateOf(s.now()))
	if err != nil {
		s.logger.Error().Err(err).Msg("snapshot failed")
		return false
	}

	location := ""
	if s.exporter != nil {
		location, err = s.exporter.Export(ctx, snap)
		if err != nil {
			s.logger.Error().Err(err).Msg("snapshot export failed")
		}
	}

	if s.bus != nil {
		s.bus.Publish(events.EventSnapshotCompleted, events.Payload{
			"day":        snap.Day.Format("2006-01-02"),
			"forecasts":  len(snap.Forecasts),
			"analytics":  len(snap.Analytics),
			"backfilled": snap.Backfilled,
			"location":   location,
		})
	}
	return true
}
