/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// DemandForecast persists a prediction so dashboards can compare it with
// what actually happened. Unique per stall, slot and forecast date.
type DemandForecast struct {
	ID                string    `gorm:"type:uuid;primaryKey" json:"id"`
	StallID           string    `gorm:"type:uuid;not null;uniqueIndex:idx_forecast_stall_slot_date,priority:1" json:"stall_id"`
	Slot              string    `gorm:"type:varchar(5);not null;uniqueIndex:idx_forecast_stall_slot_date,priority:2" json:"slot"`
	ForecastDate      time.Time `gorm:"type:date;not null;uniqueIndex:idx_forecast_stall_slot_date,priority:3" json:"forecast_date"`
	DayOfWeek         int       `gorm:"not null" json:"day_of_week"` // 0=Monday, 6=Sunday
	PredictedQuantity int       `gorm:"not null;default:0" json:"predicted_quantity"`
	ActualQuantity    int       `gorm:"not null;default:0" json:"actual_quantity"`
	ConfidenceScore   float64   `gorm:"not null;default:0" json:"confidence_score"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (DemandForecast) TableName() string {
	return "demand_forecasts"
}

// OrderAnalytics is a daily per-slot snapshot of a stall's orders.
type OrderAnalytics struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	StallID      string    `gorm:"type:uuid;not null;uniqueIndex:idx_analytics_stall_date_slot,priority:1" json:"stall_id"`
	Date         time.Time `gorm:"type:date;not null;uniqueIndex:idx_analytics_stall_date_slot,priority:2" json:"date"`
	Slot         string    `gorm:"type:varchar(5);not null;uniqueIndex:idx_analytics_stall_date_slot,priority:3" json:"slot"`
	TotalOrders  int       `gorm:"not null;default:0" json:"total_orders"`
	TotalRevenue float64   `gorm:"type:decimal(10,2);not null;default:0" json:"total_revenue"`
	AvgPrepTime  float64   `gorm:"not null;default:0" json:"avg_prep_time"`
	PeakHour     bool      `gorm:"not null;default:false" json:"peak_hour"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (OrderAnalytics) TableName() string {
	return "order_analytics"
}

// ISOWeekday maps time.Weekday to 0=Monday..6=Sunday.
func ISOWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
