/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of recorded activity.
type AuditAction string

// Audit action constants, one per published event.
const (
	AuditActionOrderPlaced       AuditAction = "order.placed"
	AuditActionOrderStatus       AuditAction = "order.status"
	AuditActionSlotCongested     AuditAction = "slot.congested"
	AuditActionSnapshotCompleted AuditAction = "snapshot.completed"
	AuditActionLeaderElected     AuditAction = "leader.elected"
	AuditActionLeaderLost        AuditAction = "leader.lost"
)

// AuditLog records order activity and system jobs so stall owners can trace
// what happened to an order or a slot.
type AuditLog struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	Timestamp    time.Time      `gorm:"index:idx_audit_timestamp;not null"`
	UserID       *string        `gorm:"type:uuid;index:idx_audit_user"`  // NULL for system actions
	StallID      *string        `gorm:"type:uuid;index:idx_audit_stall"` // NULL if not stall specific
	Action       AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null"`
	ResourceType string         `gorm:"type:varchar(64)"` // "order", "slot", "snapshot", "instance"
	ResourceID   string         `gorm:"type:varchar(64);index:idx_audit_resource"`
	Details      map[string]any `gorm:"type:text;serializer:json"`
	CreatedAt    time.Time
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
