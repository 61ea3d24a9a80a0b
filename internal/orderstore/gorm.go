/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package orderstore implements forecast.OrderSource over the orders table
// and in memory.
package orderstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/models"
)

// GormStore counts orders in the database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// CountOrders implements forecast.OrderSource.
func (s *GormStore) CountOrders(ctx context.Context, q forecast.CountQuery) (int64, error) {
	var n int64
	if err := s.scope(ctx, q).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// CountBySlot implements forecast.SlotCounter. q.Slot is ignored.
func (s *GormStore) CountBySlot(ctx context.Context, q forecast.CountQuery) (map[string]int64, error) {
	q.Slot = ""

	var rows []struct {
		Slot  string
		Total int64
	}
	err := s.scope(ctx, q).
		Select("slot, COUNT(*) AS total").
		Group("slot").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count orders by slot: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Slot] = r.Total
	}
	return out, nil
}

// SlotSummary is the order breakdown of one slot on one date.
type SlotSummary struct {
	Slot        string  `json:"slot"`
	Label       string  `json:"label"`
	TotalOrders int64   `json:"total_orders"`
	Revenue     float64 `json:"revenue"`
	Pending     int64   `json:"pending"`
	Confirmed   int64   `json:"confirmed"`
	Preparing   int64   `json:"preparing"`
	Ready       int64   `json:"ready"`
	Completed   int64   `json:"completed"`
	Cancelled   int64   `json:"cancelled"`
}

// SlotBreakdown summarises the orders picked up on day, one entry per
// catalog slot in catalog order. An empty stallID covers every stall.
// Totals and revenue include every status.
func (s *GormStore) SlotBreakdown(ctx context.Context, catalog *models.SlotCatalog, stallID string, day time.Time) ([]SlotSummary, error) {
	day = forecast.DateOf(day)
	tx := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("pickup_date >= ? AND pickup_date <= ?", day, day)
	if stallID != "" {
		tx = tx.Where("stall_id = ?", stallID)
	}

	var rows []struct {
		Slot    string
		Status  models.OrderStatus
		Total   int64
		Revenue float64
	}
	err := tx.Select("slot, status, COUNT(*) AS total, COALESCE(SUM(total_amount), 0) AS revenue").
		Group("slot, status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("slot breakdown: %w", err)
	}

	out := make([]SlotSummary, catalog.Len())
	for i, slot := range catalog.Slots() {
		out[i] = SlotSummary{Slot: slot.Key, Label: slot.Label}
	}
	for _, r := range rows {
		pos := catalog.Position(r.Slot)
		if pos < 0 {
			continue
		}
		sum := &out[pos]
		sum.TotalOrders += r.Total
		sum.Revenue += r.Revenue
		switch r.Status {
		case models.OrderPending:
			sum.Pending += r.Total
		case models.OrderConfirmed:
			sum.Confirmed += r.Total
		case models.OrderPreparing:
			sum.Preparing += r.Total
		case models.OrderReady:
			sum.Ready += r.Total
		case models.OrderCompleted:
			sum.Completed += r.Total
		case models.OrderCancelled:
			sum.Cancelled += r.Total
		}
	}
	return out, nil
}

func (s *GormStore) scope(ctx context.Context, q forecast.CountQuery) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&models.Order{}).Where("stall_id = ?", q.StallID)
	if q.Slot != "" {
		tx = tx.Where("slot = ?", q.Slot)
	}
	if !q.From.IsZero() {
		tx = tx.Where("pickup_date >= ?", forecast.DateOf(q.From))
	}
	if !q.To.IsZero() {
		tx = tx.Where("pickup_date <= ?", forecast.DateOf(q.To))
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			statuses[i] = string(st)
		}
		tx = tx.Where("status IN ?", statuses)
	}
	return tx
}
