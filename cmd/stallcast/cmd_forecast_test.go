/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/stallcast/internal/db"
	"github.com/friendsincode/stallcast/internal/models"
)

func TestResolveStallByIDOrName(t *testing.T) {
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(database))

	stall := models.Stall{ID: uuid.NewString(), Name: "Quick Bites", IsOpen: true}
	require.NoError(t, database.Create(&stall).Error)

	got, err := resolveStall(database, stall.ID)
	require.NoError(t, err)
	assert.Equal(t, "Quick Bites", got.Name)

	got, err = resolveStall(database, "quick bites")
	require.NoError(t, err)
	assert.Equal(t, stall.ID, got.ID)

	_, err = resolveStall(database, "Sweet Tooth")
	assert.ErrorContains(t, err, "not found")

	_, err = resolveStall(database, uuid.NewString())
	assert.ErrorContains(t, err, "not found")
}

func TestRenderTableIncludesRows(t *testing.T) {
	var buf bytes.Buffer
	renderTable(&buf, "Recommended", []string{"Slot", "Congestion"}, [][]string{
		{"15:00", "low"},
		{"12:00", "high"},
	}, 1)

	out := buf.String()
	assert.Contains(t, out, "Recommended")
	assert.Contains(t, out, "15:00")
	assert.Contains(t, out, "high")
}

func TestForecastTargetDate(t *testing.T) {
	today := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "absent defaults to tomorrow", raw: "", want: "2026-10-20"},
		{name: "explicit date", raw: "2026-10-23", want: "2026-10-23"},
		{name: "malformed falls back to today", raw: "20-10-2026", want: "2026-10-19"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, forecastTarget(tt.raw, today).Format("2006-01-02"))
		})
	}
}
