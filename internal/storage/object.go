/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package storage writes report objects to a directory or an S3 bucket.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound indicates the object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore abstracts object storage operations.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Location returns a human readable address of key.
	Location(key string) string
}
