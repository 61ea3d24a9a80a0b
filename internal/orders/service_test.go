/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/stallcast/internal/db"
	"github.com/friendsincode/stallcast/internal/events"
	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/models"
	"github.com/friendsincode/stallcast/internal/orderstore"
)

var (
	monday  = time.Date(2026, 10, 19, 9, 15, 0, 0, time.UTC)
	tuesday = time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	db      *gorm.DB
	stall   models.Stall
	samosa  models.MenuItem
	chai    models.MenuItem
	hidden  models.MenuItem
	bus     *events.Bus
	service *Service
}

type stubCongestion struct {
	level forecast.CongestionLevel
	count int
}

func (s stubCongestion) Classify(context.Context, string, string, time.Time) (forecast.CongestionLevel, int) {
	return s.level, s.count
}

type recordingInvalidator struct {
	stalls []string
}

func (r *recordingInvalidator) InvalidateStall(_ context.Context, stallID string) error {
	r.stalls = append(r.stalls, stallID)
	return nil
}

func newFixture(t *testing.T, congestion Congestion) *fixture {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gdb))

	f := &fixture{db: gdb, bus: events.NewBus()}
	f.stall = models.Stall{ID: uuid.NewString(), Name: "Chaat Corner", IsOpen: true}
	require.NoError(t, gdb.Create(&f.stall).Error)

	f.samosa = models.MenuItem{ID: uuid.NewString(), StallID: f.stall.ID, Name: "Samosa", Price: 15, PrepTimeMinutes: 5, IsAvailable: true}
	f.chai = models.MenuItem{ID: uuid.NewString(), StallID: f.stall.ID, Name: "Masala Chai", Price: 12.5, PrepTimeMinutes: 3, IsAvailable: true}
	f.hidden = models.MenuItem{ID: uuid.NewString(), StallID: f.stall.ID, Name: "Paneer Roll", Price: 60, PrepTimeMinutes: 8, IsAvailable: true}
	require.NoError(t, gdb.Create(&[]models.MenuItem{f.samosa, f.chai, f.hidden}).Error)
	require.NoError(t, gdb.Model(&models.MenuItem{}).Where("id = ?", f.hidden.ID).Update("is_available", false).Error)

	if congestion == nil {
		engine, err := forecast.NewEngine(orderstore.NewGormStore(gdb), models.DefaultSlotCatalog(), forecast.DefaultConfig(), zerolog.Nop())
		require.NoError(t, err)
		congestion = engine
	}

	f.service = NewService(gdb, models.DefaultSlotCatalog(), congestion, f.bus, zerolog.Nop())
	f.service.SetClock(func() time.Time { return monday })
	return f
}

func (f *fixture) request(items ...CartItem) PlaceRequest {
	return PlaceRequest{
		UserID:     uuid.NewString(),
		StallID:    f.stall.ID,
		Slot:       "12:00",
		PickupDate: tuesday,
		Items:      items,
	}
}

func TestPlacePricesCartFromMenu(t *testing.T) {
	f := newFixture(t, nil)
	sub := f.bus.Subscribe(events.EventOrderPlaced)
	defer f.bus.Unsubscribe(events.EventOrderPlaced, sub)

	p, err := f.service.Place(context.Background(), f.request(
		CartItem{MenuItemID: f.samosa.ID, Quantity: 2},
		CartItem{MenuItemID: f.chai.ID, Quantity: 1, Customization: "less sugar"},
		CartItem{MenuItemID: f.hidden.ID, Quantity: 1},
		CartItem{MenuItemID: "missing", Quantity: 3},
	))
	require.NoError(t, err)

	assert.Equal(t, 42.5, p.Order.TotalAmount)
	assert.Equal(t, "1910001", p.Order.TokenNumber)
	assert.Equal(t, models.OrderPending, p.Order.Status)
	assert.Equal(t, forecast.CongestionLow, p.Congestion)
	assert.Empty(t, p.Warning)
	require.NotNil(t, p.Order.EstimatedReadyAt)
	assert.Equal(t, monday.Add(13*time.Minute), *p.Order.EstimatedReadyAt)

	stored, err := f.service.Get(context.Background(), p.Order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.True(t, stored.PickupDate.Equal(tuesday))

	select {
	case payload := <-sub:
		assert.Equal(t, p.Order.ID, payload.String("order_id"))
		assert.Equal(t, "2026-10-20", payload.String("pickup_date"))
	case <-time.After(time.Second):
		t.Fatal("expected order.placed event")
	}
}

func TestPlaceTokenSequencePerStallAndDate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.service.Place(ctx, f.request(CartItem{MenuItemID: f.samosa.ID, Quantity: 1}))
	require.NoError(t, err)
	second, err := f.service.Place(ctx, f.request(CartItem{MenuItemID: f.chai.ID, Quantity: 1}))
	require.NoError(t, err)

	other := f.request(CartItem{MenuItemID: f.chai.ID, Quantity: 1})
	other.PickupDate = tuesday.AddDate(0, 0, 1)
	third, err := f.service.Place(ctx, other)
	require.NoError(t, err)

	assert.Equal(t, "1910001", first.Order.TokenNumber)
	assert.Equal(t, "1910002", second.Order.TokenNumber)
	assert.Equal(t, "1910001", third.Order.TokenNumber)
}

func TestPlaceRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	badSlot := f.request(CartItem{MenuItemID: f.samosa.ID, Quantity: 1})
	badSlot.Slot = "11:00"
	_, err := f.service.Place(ctx, badSlot)
	assert.ErrorIs(t, err, ErrUnknownSlot)

	_, err = f.service.Place(ctx, f.request())
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = f.service.Place(ctx, f.request(
		CartItem{MenuItemID: f.hidden.ID, Quantity: 1},
		CartItem{MenuItemID: f.samosa.ID, Quantity: 0},
	))
	assert.ErrorIs(t, err, ErrNoValidItems)

	noStall := f.request(CartItem{MenuItemID: f.samosa.ID, Quantity: 1})
	noStall.StallID = uuid.NewString()
	_, err = f.service.Place(ctx, noStall)
	assert.ErrorIs(t, err, ErrStallNotFound)

	var n int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&n).Error)
	assert.Zero(t, n, "rejected carts must not leave orders behind")
}

func TestPlaceWarnsOnBusySlot(t *testing.T) {
	f := newFixture(t, stubCongestion{level: forecast.CongestionHigh, count: 40})
	sub := f.bus.Subscribe(events.EventSlotCongested)
	defer f.bus.Unsubscribe(events.EventSlotCongested, sub)

	p, err := f.service.Place(context.Background(), f.request(CartItem{MenuItemID: f.samosa.ID, Quantity: 1}))
	require.NoError(t, err)

	assert.Equal(t, "The 12:00 slot is very busy (40 orders).", p.Warning)
	select {
	case payload := <-sub:
		assert.Equal(t, 40, payload["current_orders"])
	case <-time.After(time.Second):
		t.Fatal("expected slot.congested event")
	}
}

func TestPlaceClassifiesAgainstLiveOrders(t *testing.T) {
	f := newFixture(t, nil)

	existing := make([]models.Order, 0, 40)
	for i := 0; i < 40; i++ {
		status := models.OrderConfirmed
		if i >= 38 {
			status = models.OrderCompleted
		}
		existing = append(existing, models.Order{
			ID:         uuid.NewString(),
			StallID:    f.stall.ID,
			Slot:       "12:00",
			PickupDate: tuesday,
			Status:     status,
		})
	}
	require.NoError(t, f.db.Create(&existing).Error)

	p, err := f.service.Place(context.Background(), f.request(CartItem{MenuItemID: f.samosa.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, forecast.CongestionHigh, p.Congestion)
	assert.Equal(t, 38, p.CurrentCount)
	assert.Equal(t, CongestionWarning("12:00", 38), p.Warning)
	assert.Equal(t, "1910041", p.Order.TokenNumber)
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	inv := &recordingInvalidator{}
	f.service.SetInvalidator(inv)
	ctx := context.Background()

	p, err := f.service.Place(ctx, f.request(CartItem{MenuItemID: f.samosa.ID, Quantity: 1}))
	require.NoError(t, err)
	id := p.Order.ID

	_, err = f.service.UpdateStatus(ctx, id, models.OrderReady)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	for _, next := range []models.OrderStatus{models.OrderConfirmed, models.OrderPreparing} {
		o, err := f.service.UpdateStatus(ctx, id, next)
		require.NoError(t, err)
		assert.Equal(t, next, o.Status)
	}

	_, err = f.service.Cancel(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidTransition, "preparing orders cannot be cancelled")

	_, err = f.service.UpdateStatus(ctx, id, models.OrderStatus("lost"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.service.UpdateStatus(ctx, uuid.NewString(), models.OrderConfirmed)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	stored, err := f.service.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPreparing, stored.Status)
	assert.Equal(t, []string{f.stall.ID, f.stall.ID, f.stall.ID}, inv.stalls)
}

func TestCancelPendingOrder(t *testing.T) {
	f := newFixture(t, nil)
	sub := f.bus.Subscribe(events.EventOrderStatus)
	defer f.bus.Unsubscribe(events.EventOrderStatus, sub)
	ctx := context.Background()

	p, err := f.service.Place(ctx, f.request(CartItem{MenuItemID: f.chai.ID, Quantity: 2}))
	require.NoError(t, err)

	o, err := f.service.Cancel(ctx, p.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, o.Status)

	select {
	case payload := <-sub:
		assert.Equal(t, "cancelled", payload.String("status"))
		assert.Equal(t, "pending", payload.String("previous_status"))
	case <-time.After(time.Second):
		t.Fatal("expected order.status event")
	}
}

func TestGetUnknownOrder(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.service.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrOrderNotFound), fmt.Sprint(err))
}
