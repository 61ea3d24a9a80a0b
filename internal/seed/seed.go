/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package seed fills a database with demo stalls, menus and order history.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/models"
)

// historyCap bounds the orders generated per stall, slot and day.
const historyCap = 10

type menuSeed struct {
	name       string
	category   models.MenuCategory
	price      float64
	vegetarian bool
	calories   int
	prep       int
}

type stallSeed struct {
	name        string
	description string
	location    string
	items       []menuSeed
}

var demoStalls = []stallSeed{
	{
		name:        "Tiffin Corner",
		description: "Home-style South Indian and North Indian meals, freshly prepared every day.",
		location:    "Block A - Ground Floor",
		items: []menuSeed{
			{"Masala Dosa", models.MenuMeals, 45, true, 180, 10},
			{"Idli Sambar (3 pcs)", models.MenuMeals, 35, true, 120, 8},
			{"Chicken Biryani", models.MenuMeals, 90, false, 450, 20},
			{"Veg Biryani", models.MenuMeals, 70, true, 380, 15},
			{"Curd Rice", models.MenuMeals, 30, true, 200, 5},
			{"Chapati (3 pcs)", models.MenuMeals, 25, true, 150, 10},
			{"Filter Coffee", models.MenuBeverages, 15, true, 60, 3},
			{"Buttermilk", models.MenuBeverages, 10, true, 40, 2},
		},
	},
	{
		name:        "Quick Bites",
		description: "Fast snacks, sandwiches, and beverages. Perfect for a quick break.",
		location:    "Block B - Cafeteria",
		items: []menuSeed{
			{"Veg Sandwich", models.MenuSnacks, 40, true, 220, 7},
			{"Egg Sandwich", models.MenuSnacks, 50, false, 280, 8},
			{"Samosa (2 pcs)", models.MenuSnacks, 20, true, 150, 5},
			{"Pav Bhaji", models.MenuSnacks, 55, true, 320, 12},
			{"French Fries", models.MenuSnacks, 50, true, 250, 10},
			{"Cold Coffee", models.MenuBeverages, 40, true, 200, 5},
			{"Fresh Lime Soda", models.MenuBeverages, 25, true, 30, 3},
			{"Combo: Sandwich + Cold Coffee", models.MenuCombos, 75, true, 420, 10},
		},
	},
	{
		name:        "Sweet Tooth",
		description: "Desserts, sweets, and snacks to satisfy your cravings.",
		location:    "Block C - Near Library",
		items: []menuSeed{
			{"Gulab Jamun (2 pcs)", models.MenuDesserts, 25, true, 200, 5},
			{"Jalebi (100g)", models.MenuDesserts, 20, true, 250, 5},
			{"Ice Cream", models.MenuDesserts, 35, true, 180, 3},
			{"Chocolate Brownie", models.MenuDesserts, 40, true, 280, 8},
			{"Banana Shake", models.MenuBeverages, 45, true, 250, 5},
			{"Mango Lassi", models.MenuBeverages, 40, true, 220, 4},
		},
	},
}

// slotDemand is the daily order range per slot, before historyCap applies.
var slotDemand = map[string][2]int{
	"10:00": {5, 20},
	"12:00": {15, 45},
	"13:00": {20, 40},
	"15:00": {5, 15},
}

var historyStatuses = []models.OrderStatus{
	models.OrderCompleted, models.OrderCompleted, models.OrderCompleted, models.OrderCancelled,
}

var liveStatuses = []models.OrderStatus{
	models.OrderPending, models.OrderConfirmed, models.OrderPreparing,
}

// Options controls a seed run.
type Options struct {
	Today       time.Time
	HistoryDays int
	Catalog     *models.SlotCatalog
	Rand        *rand.Rand
}

// Result counts what a run created.
type Result struct {
	StallsCreated int
	MenuItems     int
	HistoryOrders int
	TodayOrders   int
}

// Seeder writes demo data.
type Seeder struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New creates a seeder.
func New(db *gorm.DB, logger zerolog.Logger) *Seeder {
	return &Seeder{db: db, logger: logger.With().Str("component", "seed").Logger()}
}

// StudentIDs returns the stable user ids orders are spread across.
func StudentIDs() []string {
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("stallcast-student%d", i+1))).String()
	}
	return ids
}

// Run creates missing demo stalls with their menus, then orders for the
// previous HistoryDays days and live orders for today. Stalls that already
// exist keep their menu.
func (s *Seeder) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result
	if opts.Today.IsZero() {
		opts.Today = time.Now()
	}
	opts.Today = forecast.DateOf(opts.Today)
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 14
	}
	if opts.Catalog == nil {
		opts.Catalog = models.DefaultSlotCatalog()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	students := StudentIDs()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, def := range demoStalls {
			stall, created, err := ensureStall(tx, def)
			if err != nil {
				return err
			}
			if created {
				res.StallsCreated++
				res.MenuItems += len(stall.MenuItems)
			}

			var items []models.MenuItem
			if err := tx.Where("stall_id = ? AND is_available = ?", stall.ID, true).Find(&items).Error; err != nil {
				return fmt.Errorf("load menu of %s: %w", stall.Name, err)
			}
			if len(items) == 0 {
				continue
			}

			g := generator{rng: opts.Rand, stallID: stall.ID, items: items, students: students}
			for back := opts.HistoryDays; back >= 1; back-- {
				day := opts.Today.AddDate(0, 0, -back)
				for _, slot := range opts.Catalog.Keys() {
					lo, hi := demandRange(slot)
					n := min(lo+opts.Rand.Intn(hi-lo+1), historyCap)
					orders := g.orders(slot, day, n, historyStatuses, 3)
					if err := insert(tx, orders); err != nil {
						return err
					}
					res.HistoryOrders += len(orders)
				}
			}

			for _, slot := range opts.Catalog.Keys() {
				orders := g.orders(slot, opts.Today, 2+opts.Rand.Intn(7), liveStatuses, 2)
				if err := insert(tx, orders); err != nil {
					return err
				}
				res.TodayOrders += len(orders)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.logger.Info().
		Int("stalls_created", res.StallsCreated).
		Int("history_orders", res.HistoryOrders).
		Int("today_orders", res.TodayOrders).
		Msg("demo data seeded")
	return res, nil
}

func ensureStall(tx *gorm.DB, def stallSeed) (models.Stall, bool, error) {
	var stall models.Stall
	err := tx.Where("name = ?", def.name).First(&stall).Error
	if err == nil {
		return stall, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return stall, false, fmt.Errorf("lookup stall %s: %w", def.name, err)
	}

	stall = models.Stall{
		ID:          uuid.NewString(),
		Name:        def.name,
		Description: def.description,
		Location:    def.location,
		IsOpen:      true,
	}
	for _, it := range def.items {
		calories := it.calories
		stall.MenuItems = append(stall.MenuItems, models.MenuItem{
			ID:              uuid.NewString(),
			Name:            it.name,
			Description:     fmt.Sprintf("Fresh %s prepared daily.", it.name),
			Price:           it.price,
			Category:        it.category,
			IsAvailable:     true,
			PrepTimeMinutes: it.prep,
			Calories:        &calories,
			IsVegetarian:    it.vegetarian,
		})
	}
	if err := tx.Create(&stall).Error; err != nil {
		return stall, false, fmt.Errorf("create stall %s: %w", def.name, err)
	}
	return stall, true, nil
}

func demandRange(slot string) (int, int) {
	if r, ok := slotDemand[slot]; ok {
		return r[0], r[1]
	}
	return 5, 15
}

type generator struct {
	rng      *rand.Rand
	stallID  string
	items    []models.MenuItem
	students []string
}

// orders builds n orders with 1..maxLines distinct items of quantity 1 or 2.
func (g generator) orders(slot string, day time.Time, n int, statuses []models.OrderStatus, maxLines int) []models.Order {
	out := make([]models.Order, 0, n)
	for i := 0; i < n; i++ {
		order := models.Order{
			ID:         uuid.NewString(),
			UserID:     g.students[g.rng.Intn(len(g.students))],
			StallID:    g.stallID,
			Slot:       slot,
			PickupDate: day,
			Status:     statuses[g.rng.Intn(len(statuses))],
		}

		lines := min(1+g.rng.Intn(maxLines), len(g.items))
		var total float64
		for _, idx := range g.rng.Perm(len(g.items))[:lines] {
			item := g.items[idx]
			qty := 1 + g.rng.Intn(2)
			order.Items = append(order.Items, models.OrderItem{
				ID:           uuid.NewString(),
				OrderID:      order.ID,
				MenuItemID:   item.ID,
				Quantity:     qty,
				PriceAtOrder: item.Price,
			})
			total += item.Price * float64(qty)
		}
		order.TotalAmount = math.Round(total*100) / 100
		out = append(out, order)
	}
	return out
}

func insert(tx *gorm.DB, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(orders, 100).Error; err != nil {
		return fmt.Errorf("insert orders: %w", err)
	}
	return nil
}
