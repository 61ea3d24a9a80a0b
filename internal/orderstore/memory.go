/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package orderstore

import (
	"context"
	"sync"

	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/models"
)

// MemoryStore keeps orders in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]models.Order
	err    error
}

// NewMemoryStore returns a store holding orders.
func NewMemoryStore(orders ...models.Order) *MemoryStore {
	s := &MemoryStore{orders: make(map[string]models.Order)}
	s.Add(orders...)
	return s
}

// Add inserts or replaces orders by ID. Pickup dates are normalized.
func (s *MemoryStore) Add(orders ...models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range orders {
		o.PickupDate = forecast.DateOf(o.PickupDate)
		s.orders[o.ID] = o
	}
}

// SetStatus changes the status of an order. It reports whether the order exists.
func (s *MemoryStore) SetStatus(id string, status models.OrderStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false
	}
	o.Status = status
	s.orders[id] = o
	return true
}

// FailWith makes every subsequent count return err. A nil err restores normal operation.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Len returns the number of stored orders.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// CountOrders implements forecast.OrderSource.
func (s *MemoryStore) CountOrders(_ context.Context, q forecast.CountQuery) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return 0, s.err
	}
	var n int64
	for _, o := range s.orders {
		if matches(o, q) {
			n++
		}
	}
	return n, nil
}

// CountBySlot implements forecast.SlotCounter. q.Slot is ignored.
func (s *MemoryStore) CountBySlot(_ context.Context, q forecast.CountQuery) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	q.Slot = ""
	out := make(map[string]int64)
	for _, o := range s.orders {
		if matches(o, q) {
			out[o.Slot]++
		}
	}
	return out, nil
}

func matches(o models.Order, q forecast.CountQuery) bool {
	if o.StallID != q.StallID {
		return false
	}
	if q.Slot != "" && o.Slot != q.Slot {
		return false
	}
	if !q.From.IsZero() && o.PickupDate.Before(forecast.DateOf(q.From)) {
		return false
	}
	if !q.To.IsZero() && o.PickupDate.After(forecast.DateOf(q.To)) {
		return false
	}
	if len(q.Statuses) == 0 {
		return true
	}
	for _, st := range q.Statuses {
		if o.Status == st {
			return true
		}
	}
	return false
}
