/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
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
	"github.com/friendsincode/stallcast/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(database))
	return database
}

func TestStartRecordsOrderEvents(t *testing.T) {
	database := newTestDB(t)
	bus := events.NewBus()
	svc := NewService(database, bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		return bus.SubscriberCount(events.EventLeaderLost) == 1
	}, time.Second, 5*time.Millisecond)

	orderID := uuid.NewString()
	stallID := uuid.NewString()
	userID := uuid.NewString()
	bus.Publish(events.EventOrderPlaced, events.Payload{
		"order_id": orderID, "user_id": userID, "stall_id": stallID,
		"slot": "12:00", "status": "pending", "token": "T1910-001",
	})
	bus.Publish(events.EventLeaderElected, events.Payload{"instance_id": "node-a"})

	require.Eventually(t, func() bool {
		var n int64
		database.Model(&models.AuditLog{}).Count(&n)
		return n == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Zero(t, bus.SubscriberCount(events.EventOrderPlaced))

	logs, total, err := svc.Query(context.Background(), QueryFilters{ResourceID: &orderID})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	entry := logs[0]
	assert.Equal(t, models.AuditActionOrderPlaced, entry.Action)
	assert.Equal(t, "order", entry.ResourceType)
	require.NotNil(t, entry.StallID)
	assert.Equal(t, stallID, *entry.StallID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, userID, *entry.UserID)
	assert.Equal(t, "12:00", entry.Details["slot"])
	assert.NotContains(t, entry.Details, "stall_id")

	action := models.AuditActionLeaderElected
	logs, _, err = svc.Query(context.Background(), QueryFilters{Action: &action})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "instance", logs[0].ResourceType)
	assert.Equal(t, "node-a", logs[0].ResourceID)
	assert.Nil(t, logs[0].StallID)
}

func TestQueryFiltersAndPaginates(t *testing.T) {
	database := newTestDB(t)
	svc := NewService(database, events.NewBus(), zerolog.Nop())
	ctx := context.Background()

	stallA := uuid.NewString()
	stallB := uuid.NewString()
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		stall := stallA
		if i == 4 {
			stall = stallB
		}
		require.NoError(t, svc.Log(ctx, &models.AuditLog{
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
			StallID:      &stall,
			Action:       models.AuditActionOrderStatus,
			ResourceType: "order",
			ResourceID:   uuid.NewString(),
		}))
	}

	logs, total, err := svc.Query(ctx, QueryFilters{StallID: &stallA, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].Timestamp.After(logs[1].Timestamp))

	end := base.Add(90 * time.Second)
	logs, total, err = svc.Query(ctx, QueryFilters{EndTime: &end})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, logs, 2)
}
