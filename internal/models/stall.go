/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// MenuCategory groups menu items on the stall page.
type MenuCategory string

const (
	MenuSnacks    MenuCategory = "snacks"
	MenuMeals     MenuCategory = "meals"
	MenuBeverages MenuCategory = "beverages"
	MenuDesserts  MenuCategory = "desserts"
	MenuCombos    MenuCategory = "combos"
)

// Stall is a food stall on campus.
type Stall struct {
	ID          string `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	OwnerID     string `gorm:"type:uuid;index" json:"owner_id,omitempty"`
	Location    string `json:"location,omitempty"`
	IsOpen      bool   `gorm:"not null;default:true" json:"is_open"`

	MenuItems []MenuItem `gorm:"foreignKey:StallID" json:"menu_items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Stall) TableName() string {
	return "stalls"
}

// MenuItem is something a stall sells.
type MenuItem struct {
	ID              string       `gorm:"type:uuid;primaryKey" json:"id"`
	StallID         string       `gorm:"type:uuid;index;not null" json:"stall_id"`
	Name            string       `gorm:"not null" json:"name"`
	Description     string       `gorm:"type:text" json:"description,omitempty"`
	Price           float64      `gorm:"type:decimal(8,2);not null" json:"price"`
	Category        MenuCategory `gorm:"type:varchar(20);default:snacks" json:"category"`
	IsAvailable     bool         `gorm:"not null;default:true" json:"is_available"`
	PrepTimeMinutes int          `gorm:"not null;default:10" json:"prep_time_minutes"`
	Calories        *int         `json:"calories,omitempty"`
	IsVegetarian    bool         `json:"is_vegetarian"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (MenuItem) TableName() string {
	return "menu_items"
}
