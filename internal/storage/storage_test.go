/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	s, err := NewFilesystemStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "snapshots/2026-10-19.json", []byte(`{"ok":true}`)))

	data, err := s.Get(ctx, "snapshots/2026-10-19.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, filepath.Join(root, "snapshots", "2026-10-19.json"), s.Location("snapshots/2026-10-19.json"))

	_, err = s.Get(ctx, "snapshots/missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystemStoreRejectsEscapingKeys(t *testing.T) {
	s, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.Put(context.Background(), "../outside.json", []byte("x")))
	assert.Error(t, s.Put(context.Background(), "", []byte("x")))
}

func TestS3StoreKeys(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{})
	assert.Error(t, err, "bucket is required")

	s, err := NewS3Store(context.Background(), S3Config{
		Bucket:          "reports",
		Region:          "us-east-1",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
		Prefix:          "/stallcast/",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://reports/stallcast/snapshots/a.json", s.Location("/snapshots/a.json"))
	assert.Equal(t, "application/json", contentType("a.json"))
}
