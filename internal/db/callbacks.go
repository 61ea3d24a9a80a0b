/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/stallcast/internal/telemetry"
)

const startedAtKey = "stallcast:started_at"

// trackedTables get their own metric label. Anything else (migrator
// lookups, sqlite_master) is reported as "other" so label cardinality stays
// fixed.
var trackedTables = map[string]bool{
	"stalls":           true,
	"menu_items":       true,
	"orders":           true,
	"order_items":      true,
	"demand_forecasts": true,
	"order_analytics":  true,
	"audit_logs":       true,
}

// RegisterCallbacks times every GORM query, create, update and delete per
// table, and counts written rows and failures. Raw Exec/Row calls are not
// observed.
func RegisterCallbacks(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Query().Before("gorm:query").Register("stallcast:before_query", markStart); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("stallcast:after_query", observe("query", false)); err != nil {
		return err
	}

	if err := cb.Create().Before("gorm:create").Register("stallcast:before_create", markStart); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("stallcast:after_create", observe("create", true)); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("stallcast:before_update", markStart); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("stallcast:after_update", observe("update", true)); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("stallcast:before_delete", markStart); err != nil {
		return err
	}
	return cb.Delete().After("gorm:delete").Register("stallcast:after_delete", observe("delete", true))
}

func markStart(db *gorm.DB) {
	db.InstanceSet(startedAtKey, time.Now())
}

func observe(operation string, writes bool) func(*gorm.DB) {
	return func(db *gorm.DB) {
		table := tableLabel(db.Statement.Table)

		if v, ok := db.InstanceGet(startedAtKey); ok {
			if started, ok := v.(time.Time); ok {
				telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(started).Seconds())
			}
		}

		if kind := errorKind(db.Error); kind != "" {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation, table, kind).Inc()
			return
		}
		if writes && db.RowsAffected > 0 {
			telemetry.DatabaseRowsWritten.WithLabelValues(operation, table).Add(float64(db.RowsAffected))
		}
	}
}

func tableLabel(table string) string {
	if trackedTables[table] {
		return table
	}
	return "other"
}

// errorKind classifies a GORM error for metrics. Missing rows are an
// expected lookup outcome and are not counted.
func errorKind(err error) string {
	switch {
	case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
		return ""
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return "duplicate_key"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return "foreign_key"
	default:
		return "query_error"
	}
}

// UpdateConnectionMetrics publishes pool statistics. The server calls it on a ticker.
func UpdateConnectionMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}
