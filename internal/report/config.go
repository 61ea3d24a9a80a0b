/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package report

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/friendsincode/stallcast/internal/config"
	"github.com/friendsincode/stallcast/internal/storage"
)

// KeyPrefix namespaces report objects inside a shared bucket.
const KeyPrefix = "stallcast"

// FromConfig builds the exporter for the configured sink. S3 wins over a
// report directory. It returns nil when neither is configured.
func FromConfig(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Exporter, error) {
	switch {
	case cfg.S3Bucket != "":
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
			Prefix:          KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 report store: %w", err)
		}
		logger.Info().Str("bucket", cfg.S3Bucket).Msg("snapshot reports export to s3")
		return NewExporter(store, "s3", logger), nil
	case cfg.ReportDir != "":
		store, err := storage.NewFilesystemStore(cfg.ReportDir)
		if err != nil {
			return nil, fmt.Errorf("create report directory: %w", err)
		}
		logger.Info().Str("path", cfg.ReportDir).Msg("snapshot reports export to filesystem")
		return NewExporter(store, "fs", logger), nil
	}
	return nil, nil
}
