/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the sinks beyond the console.
type Options struct {
	Environment string
	// File, when set, receives JSON logs through a rotating writer.
	File string
	// Additional receives JSON logs too (e.g. the in-memory log buffer).
	Additional io.Writer
}

// Setup configures zerolog for the process.
func Setup(environment string) zerolog.Logger {
	logger, _ := SetupWithOptions(Options{Environment: environment})
	return logger
}

// SetupWithWriter configures zerolog with an additional writer (e.g., for log buffer).
func SetupWithWriter(environment string, additionalWriter io.Writer) zerolog.Logger {
	logger, _ := SetupWithOptions(Options{Environment: environment, Additional: additionalWriter})
	return logger
}

// SetupWithOptions configures zerolog and returns a closer for the rotating
// file writer. The closer is a no-op when no file is configured.
func SetupWithOptions(opts Options) (zerolog.Logger, io.Closer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if opts.Environment == "development" {
		level = zerolog.DebugLevel
	}

	// Console writer for human-readable output
	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stdout}}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		writers = append(writers, rotating)
		closer = rotating
	}
	if opts.Additional != nil {
		writers = append(writers, opts.Additional)
	}

	var writer io.Writer = writers[0]
	if len(writers) > 1 {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(writer).With().Timestamp().Logger().Level(level)
	log.Logger = logger
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
