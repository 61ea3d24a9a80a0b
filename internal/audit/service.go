/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/stallcast/internal/events"
	"github.com/friendsincode/stallcast/internal/models"
)

// Service records published events as an activity trail.
type Service struct {
	db     *gorm.DB
	bus    events.Broker
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus events.Broker, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
		now:    time.Now,
	}
}

// Start subscribes to order and system events and stores them until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Msg("audit service starting")

	orderPlaced := s.bus.Subscribe(events.EventOrderPlaced)
	orderStatus := s.bus.Subscribe(events.EventOrderStatus)
	slotCongested := s.bus.Subscribe(events.EventSlotCongested)
	snapshotCompleted := s.bus.Subscribe(events.EventSnapshotCompleted)
	leaderElected := s.bus.Subscribe(events.EventLeaderElected)
	leaderLost := s.bus.Subscribe(events.EventLeaderLost)

	defer func() {
		s.bus.Unsubscribe(events.EventOrderPlaced, orderPlaced)
		s.bus.Unsubscribe(events.EventOrderStatus, orderStatus)
		s.bus.Unsubscribe(events.EventSlotCongested, slotCongested)
		s.bus.Unsubscribe(events.EventSnapshotCompleted, snapshotCompleted)
		s.bus.Unsubscribe(events.EventLeaderElected, leaderElected)
		s.bus.Unsubscribe(events.EventLeaderLost, leaderLost)
	}()

	s.logger.Info().Msg("audit service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return

		case payload, ok := <-orderPlaced:
			if ok {
				s.logAuditEntry(ctx, models.AuditActionOrderPlaced, payload)
			}

		case payload, ok := <-orderStatus:
			if ok {
				s.logAuditEntry(ctx, models.AuditActionOrderStatus, payload)
			}

		case payload, ok := <-slotCongested:
			if ok {
				s.logAuditEntry(ctx, models.AuditActionSlotCongested, payload)
			}

		case payload, ok := <-snapshotCompleted:
			if ok {
				s.logAuditEntry(ctx, models.AuditActionSnapshotCompleted, payload)
			}

		case payload, ok := <-leaderElected:
			if ok {
				s.logAuditEntry(ctx, models.AuditActionLeaderElected, payload)
			}

		case payload, ok := <-leaderLost:
			if ok {
				s.logAuditEntry(ctx, models.AuditActionLeaderLost, payload)
			}
		}
	}
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action models.AuditAction, payload events.Payload) {
	entry := &models.AuditLog{
		ID:      uuid.NewString(),
		Action:  action,
		Details: make(map[string]any),
	}

	if userID := payload.String("user_id"); userID != "" {
		entry.UserID = &userID
	}
	if stallID := payload.String("stall_id"); stallID != "" {
		entry.StallID = &stallID
	}

	// The most specific identifier in the payload names the resource.
	switch {
	case payload.String("order_id") != "":
		entry.ResourceType = "order"
		entry.ResourceID = payload.String("order_id")
	case payload.String("day") != "":
		entry.ResourceType = "snapshot"
		entry.ResourceID = payload.String("day")
	case payload.String("instance_id") != "":
		entry.ResourceType = "instance"
		entry.ResourceID = payload.String("instance_id")
	}

	for k, v := range payload {
		switch k {
		case "user_id", "stall_id":
			// Already extracted
		default:
			entry.Details[k] = v
		}
	}

	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Msg("failed to log audit entry")
	}
}

// Log records an audit entry directly.
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := s.now()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", string(entry.Action)).
		Str("id", entry.ID).
		Msg("audit entry logged")

	return nil
}

// QueryFilters defines filters for querying audit logs.
type QueryFilters struct {
	UserID     *string
	StallID    *string
	ResourceID *string
	Action     *models.AuditAction
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int
	Offset     int
}

// Query retrieves audit logs with filters, most recent first.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.StallID != nil {
		query = query.Where("stall_id = ?", *filters.StallID)
	}
	if filters.ResourceID != nil {
		query = query.Where("resource_id = ?", *filters.ResourceID)
	}
	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp <= ?", *filters.EndTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	} else {
		query = query.Limit(100)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("timestamp DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
