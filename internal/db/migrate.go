/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/stallcast/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		// Catalog
		&models.Stall{},
		&models.MenuItem{},

		// Orders
		&models.Order{},
		&models.OrderItem{},

		// Forecast snapshots
		&models.DemandForecast{},
		&models.OrderAnalytics{},

		// Activity trail
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	if err := normalizeLegacyStatuses(database); err != nil {
		return err
	}

	return nil
}

// normalizeLegacyStatuses lower-cases statuses written by older importers so
// status filters match them.
func normalizeLegacyStatuses(database *gorm.DB) error {
	if err := database.Exec("UPDATE orders SET status = LOWER(TRIM(status)) WHERE status <> LOWER(TRIM(status))").Error; err != nil {
		return fmt.Errorf("normalize legacy order statuses: %w", err)
	}
	if err := database.Exec("UPDATE orders SET status = ? WHERE status = ?", models.OrderCancelled, "canceled").Error; err != nil {
		return fmt.Errorf("normalize legacy cancelled status: %w", err)
	}
	return nil
}
