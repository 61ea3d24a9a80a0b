/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package orders places orders and moves them through their lifecycle.
package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/stallcast/internal/events"
	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/models"
	"github.com/friendsincode/stallcast/internal/telemetry"
)

var (
	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrStallNotFound indicates the stall does not exist.
	ErrStallNotFound = errors.New("stall not found")

	// ErrUnknownSlot indicates the slot is not in the catalog.
	ErrUnknownSlot = errors.New("unknown pickup slot")

	// ErrEmptyCart indicates the request carried no items.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrNoValidItems indicates none of the cart items could be priced.
	ErrNoValidItems = errors.New("invalid cart items")

	// ErrInvalidStatus indicates an unknown order status.
	ErrInvalidStatus = errors.New("invalid order status")

	// ErrInvalidTransition indicates the status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Congestion classifies the live load of a slot.
type Congestion interface {
	Classify(ctx context.Context, stallID, slot string, date time.Time) (forecast.CongestionLevel, int)
}

// Invalidator drops cached results of a stall after its orders change.
type Invalidator interface {
	InvalidateStall(ctx context.Context, stallID string) error
}

// CartItem is one requested line of a new order.
type CartItem struct {
	MenuItemID    string `json:"menu_item_id"`
	Quantity      int    `json:"quantity"`
	Customization string `json:"customization,omitempty"`
}

// PlaceRequest describes a new order.
type PlaceRequest struct {
	UserID              string     `json:"user_id"`
	StallID             string     `json:"stall_id"`
	Slot                string     `json:"slot"`
	PickupDate          time.Time  `json:"pickup_date"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
	Items               []CartItem `json:"items"`
}

// Placement is the outcome of Place.
type Placement struct {
	Order        *models.Order            `json:"order"`
	Congestion   forecast.CongestionLevel `json:"congestion"`
	CurrentCount int                      `json:"current_orders"`
	Warning      string                   `json:"warning,omitempty"`
}

// Service manages orders.
type Service struct {
	db          *gorm.DB
	catalog     *models.SlotCatalog
	congestion  Congestion
	bus         events.Broker
	invalidator Invalidator
	logger      zerolog.Logger
	now         func() time.Time
}

// NewService creates a new order service. bus may be nil.
func NewService(db *gorm.DB, catalog *models.SlotCatalog, congestion Congestion, bus events.Broker, logger zerolog.Logger) *Service {
	return &Service{
		db:         db,
		catalog:    catalog,
		congestion: congestion,
		bus:        bus,
		logger:     logger.With().Str("component", "orders").Logger(),
		now:        time.Now,
	}
}

// SetInvalidator registers a cache to invalidate after order changes.
func (s *Service) SetInvalidator(inv Invalidator) {
	s.invalidator = inv
}

// SetClock overrides the wall clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CongestionWarning is shown to students picking a busy slot.
func CongestionWarning(slot string, count int) string {
	return fmt.Sprintf("The %s slot is very busy (%d orders).", slot, count)
}

// Place validates the cart, prices it from the menu and stores the order with
// its items in one transaction. A busy slot yields a warning, never a refusal.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*Placement, error) {
	if !s.catalog.Has(req.Slot) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, req.Slot)
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}

	var stall models.Stall
	if err := s.db.WithContext(ctx).First(&stall, "id = ?", req.StallID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStallNotFound
		}
		return nil, fmt.Errorf("query stall: %w", err)
	}

	pickup := forecast.DateOf(req.PickupDate)
	level, current := s.congestion.Classify(ctx, stall.ID, req.Slot, pickup)

	now := s.now().UTC()
	order := &models.Order{
		ID:                  uuid.New().String(),
		UserID:              req.UserID,
		StallID:             stall.ID,
		Slot:                req.Slot,
		PickupDate:          pickup,
		Status:              models.OrderPending,
		SpecialInstructions: req.SpecialInstructions,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, total, prepMinutes, err := priceCart(tx, stall.ID, order.ID, req.Items)
		if err != nil {
			return err
		}

		var sameDay int64
		if err := tx.Model(&models.Order{}).
			Where("stall_id = ? AND pickup_date = ?", stall.ID, pickup).
			Count(&sameDay).Error; err != nil {
			return fmt.Errorf("count orders for token: %w", err)
		}

		order.TokenNumber = fmt.Sprintf("%s%03d", now.Format("0201"), sameDay+1)
		order.TotalAmount = total
		ready := now.Add(time.Duration(prepMinutes) * time.Minute)
		order.EstimatedReadyAt = &ready

		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("create order items: %w", err)
		}
		order.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}

	placement := &Placement{Order: order, Congestion: level, CurrentCount: current}
	if level == forecast.CongestionHigh {
		placement.Warning = CongestionWarning(req.Slot, current)
	}

	telemetry.OrdersPlacedTotal.WithLabelValues(order.Slot).Inc()
	s.logger.Info().
		Str("order_id", order.ID).
		Str("stall_id", order.StallID).
		Str("slot", order.Slot).
		Str("token", order.TokenNumber).
		Str("congestion", string(level)).
		Msg("order placed")

	s.afterChange(ctx, order)
	s.publish(events.EventOrderPlaced, order, nil)
	if placement.Warning != "" {
		s.publish(events.EventSlotCongested, order, events.Payload{"current_orders": current})
	}

	return placement, nil
}

// priceCart resolves cart lines against available menu items of the stall.
// Unknown, unavailable or non-positive lines are skipped.
func priceCart(tx *gorm.DB, stallID, orderID string, cart []CartItem) ([]models.OrderItem, float64, int, error) {
	ids := make([]string, 0, len(cart))
	for _, c := range cart {
		ids = append(ids, c.MenuItemID)
	}

	var menu []models.MenuItem
	if err := tx.Where("stall_id = ? AND is_available = ? AND id IN ?", stallID, true, ids).
		Find(&menu).Error; err != nil {
		return nil, 0, 0, fmt.Errorf("load menu items: %w", err)
	}
	byID := make(map[string]models.MenuItem, len(menu))
	for _, m := range menu {
		byID[m.ID] = m
	}

	var (
		items []models.OrderItem
		total float64
		prep  int
	)
	for _, c := range cart {
		m, ok := byID[c.MenuItemID]
		if !ok || c.Quantity <= 0 {
			continue
		}
		item := models.OrderItem{
			ID:            uuid.New().String(),
			OrderID:       orderID,
			MenuItemID:    m.ID,
			Quantity:      c.Quantity,
			PriceAtOrder:  m.Price,
			Customization: c.Customization,
		}
		items = append(items, item)
		total += item.Subtotal()
		prep += m.PrepTimeMinutes * c.Quantity
	}

	total = math.Round(total*100) / 100
	if total <= 0 {
		return nil, 0, 0, ErrNoValidItems
	}
	return items, total, prep, nil
}

// Get loads an order with its items.
func (s *Service) Get(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items.MenuItem").First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return &order, nil
}

// UpdateStatus moves an order to next if the lifecycle allows it.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next models.OrderStatus) (*models.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}

	var (
		order    models.Order
		previous models.OrderStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("query order: %w", err)
		}
		previous = order.Status
		if !previous.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, previous, next)
		}
		if err := tx.Model(&order).Update("status", next).Error; err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		order.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.OrderTransitionsTotal.WithLabelValues(string(next)).Inc()
	s.logger.Info().
		Str("order_id", order.ID).
		Str("from", string(previous)).
		Str("to", string(next)).
		Msg("order status changed")

	s.afterChange(ctx, &order)
	s.publish(events.EventOrderStatus, &order, events.Payload{"previous_status": string(previous)})
	return &order, nil
}

// Cancel cancels a pending or confirmed order.
func (s *Service) Cancel(ctx context.Context, orderID string) (*models.Order, error) {
	return s.UpdateStatus(ctx, orderID, models.OrderCancelled)
}

func (s *Service) afterChange(ctx context.Context, order *models.Order) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateStall(ctx, order.StallID); err != nil {
		s.logger.Debug().Err(err).Str("stall_id", order.StallID).Msg("cache invalidation failed")
	}
}

func (s *Service) publish(eventType events.EventType, order *models.Order, extra events.Payload) {
	if s.bus == nil {
		return
	}
	payload := events.Payload{
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"stall_id":    order.StallID,
		"slot":        order.Slot,
		"pickup_date": order.PickupDate.Format("2006-01-02"),
		"status":      string(order.Status),
		"token":       order.TokenNumber,
	}
	for k, v := range extra {
		payload[k] = v
	}
	s.bus.Publish(eventType, payload)
}
