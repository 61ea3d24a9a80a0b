/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// OrderStatus enumerates the lifecycle states of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// AllOrderStatuses lists every status in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	OrderPending,
	OrderConfirmed,
	OrderPreparing,
	OrderReady,
	OrderCompleted,
	OrderCancelled,
}

var orderStatusLabels = map[OrderStatus]string{
	OrderPending:   "Pending",
	OrderConfirmed: "Confirmed",
	OrderPreparing: "Preparing",
	OrderReady:     "Ready for Pickup",
	OrderCompleted: "Completed",
	OrderCancelled: "Cancelled",
}

// orderTransitions holds the allowed forward moves. Cancellation is only
// possible before the stall starts preparing.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderPreparing, OrderCancelled},
	OrderPreparing: {OrderReady},
	OrderReady:     {OrderCompleted},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusLabels[s]
	return ok
}

// Label returns the human readable status name.
func (s OrderStatus) Label() string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// CountsTowardDemand reports whether an order in this status is part of
// historical demand. Everything except cancelled counts.
func (s OrderStatus) CountsTowardDemand() bool {
	return s.Valid() && s != OrderCancelled
}

// CountsTowardLiveLoad reports whether an order in this status still occupies
// kitchen capacity for its slot.
func (s OrderStatus) CountsTowardLiveLoad() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s.CanTransitionTo(OrderCancelled)
}

// DemandStatuses returns the statuses counted toward demand history.
func DemandStatuses() []OrderStatus {
	return filterStatuses(OrderStatus.CountsTowardDemand)
}

// LiveLoadStatuses returns the statuses counted toward live slot load.
func LiveLoadStatuses() []OrderStatus {
	return filterStatuses(OrderStatus.CountsTowardLiveLoad)
}

func filterStatuses(keep func(OrderStatus) bool) []OrderStatus {
	out := make([]OrderStatus, 0, len(AllOrderStatuses))
	for _, s := range AllOrderStatuses {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// Order is a student's pickup order at a stall for one slot on one date.
type Order struct {
	ID                  string      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              string      `gorm:"type:uuid;index" json:"user_id"`
	StallID             string      `gorm:"type:uuid;index:idx_orders_stall_slot_date,priority:1;not null" json:"stall_id"`
	Slot                string      `gorm:"type:varchar(5);index:idx_orders_stall_slot_date,priority:2;not null" json:"slot"`
	PickupDate          time.Time   `gorm:"type:date;index:idx_orders_stall_slot_date,priority:3;not null" json:"pickup_date"`
	Status              OrderStatus `gorm:"type:varchar(20);index;not null;default:pending" json:"status"`
	TotalAmount         float64     `gorm:"type:decimal(10,2);not null;default:0" json:"total_amount"`
	SpecialInstructions string      `gorm:"type:text" json:"special_instructions,omitempty"`
	TokenNumber         string      `gorm:"type:varchar(10)" json:"token_number"`
	EstimatedReadyAt    *time.Time  `json:"estimated_ready_at,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Order) TableName() string {
	return "orders"
}

// OrderItem is one line of an order, priced at the time it was placed.
type OrderItem struct {
	ID            string  `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID       string  `gorm:"type:uuid;index;not null" json:"order_id"`
	MenuItemID    string  `gorm:"type:uuid;index;not null" json:"menu_item_id"`
	Quantity      int     `gorm:"not null;default:1" json:"quantity"`
	PriceAtOrder  float64 `gorm:"type:decimal(8,2);not null" json:"price_at_order"`
	Customization string  `gorm:"type:text" json:"customization,omitempty"`

	MenuItem *MenuItem `gorm:"foreignKey:MenuItemID" json:"menu_item,omitempty"`
}

// TableName returns the table name for GORM.
func (OrderItem) TableName() string {
	return "order_items"
}

// Subtotal returns price times quantity.
func (i OrderItem) Subtotal() float64 {
	return i.PriceAtOrder * float64(i.Quantity)
}
