/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package forecast

import (
	"errors"
	"fmt"
)

// Default tunables of the reference deployment.
const (
	DefaultMaxCapacity        = 50
	DefaultPeakThreshold      = 0.7
	DefaultPeakWindowDays     = 30
	DefaultMediumRatio        = 0.4
	DefaultHighRatio          = 0.75
	DefaultLowDataConfidence  = 0.3
	DefaultZeroMeanConfidence = 0.5
	DefaultMinDataPoints      = 3
)

// DefaultWeights weight the most recent week first.
var DefaultWeights = []int{4, 3, 2, 1}

// Config carries every tunable of the engine. Components receive it at
// construction time; zero fields fall back to the defaults above.
type Config struct {
	// MaxCapacity is the number of live orders a stall can handle per slot per day.
	MaxCapacity int `json:"max_capacity" mapstructure:"max_capacity"`

	// Weights apply to 1..len(Weights) weeks back, most recent first.
	Weights []int `json:"weights" mapstructure:"weights"`

	// PeakThreshold is the fraction of the busiest slot a slot must reach to be a peak.
	PeakThreshold float64 `json:"peak_threshold" mapstructure:"peak_threshold"`

	// PeakWindowDays is the default trailing window for peak analysis.
	PeakWindowDays int `json:"peak_window_days" mapstructure:"peak_window_days"`

	// MediumRatio and HighRatio are the load/capacity breakpoints.
	MediumRatio float64 `json:"medium_ratio" mapstructure:"medium_ratio"`
	HighRatio   float64 `json:"high_ratio" mapstructure:"high_ratio"`

	// LowDataConfidence is reported when fewer than MinDataPoints weeks exist.
	LowDataConfidence float64 `json:"low_data_confidence" mapstructure:"low_data_confidence"`

	// ZeroMeanConfidence guards the coefficient of variation against a zero mean.
	ZeroMeanConfidence float64 `json:"zero_mean_confidence" mapstructure:"zero_mean_confidence"`

	MinDataPoints int `json:"min_data_points" mapstructure:"min_data_points"`
}

// DefaultConfig returns the reference tunables.
func DefaultConfig() Config {
	return Config{
		MaxCapacity:        DefaultMaxCapacity,
		Weights:            append([]int(nil), DefaultWeights...),
		PeakThreshold:      DefaultPeakThreshold,
		PeakWindowDays:     DefaultPeakWindowDays,
		MediumRatio:        DefaultMediumRatio,
		HighRatio:          DefaultHighRatio,
		LowDataConfidence:  DefaultLowDataConfidence,
		ZeroMeanConfidence: DefaultZeroMeanConfidence,
		MinDataPoints:      DefaultMinDataPoints,
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.MaxCapacity == 0 {
		c.MaxCapacity = d.MaxCapacity
	}
	if len(c.Weights) == 0 {
		c.Weights = d.Weights
	} else {
		c.Weights = append([]int(nil), c.Weights...)
	}
	if c.PeakThreshold == 0 {
		c.PeakThreshold = d.PeakThreshold
	}
	if c.PeakWindowDays == 0 {
		c.PeakWindowDays = d.PeakWindowDays
	}
	if c.MediumRatio == 0 {
		c.MediumRatio = d.MediumRatio
	}
	if c.HighRatio == 0 {
		c.HighRatio = d.HighRatio
	}
	if c.LowDataConfidence == 0 {
		c.LowDataConfidence = d.LowDataConfidence
	}
	if c.ZeroMeanConfidence == 0 {
		c.ZeroMeanConfidence = d.ZeroMeanConfidence
	}
	if c.MinDataPoints == 0 {
		c.MinDataPoints = d.MinDataPoints
	}
	return c
}

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid forecast config")

// Validate checks the tunables after defaults are applied.
func (c Config) Validate() error {
	c = c.WithDefaults()
	if c.MaxCapacity < 0 {
		return fmt.Errorf("%w: max capacity must be positive, got %d", ErrInvalidConfig, c.MaxCapacity)
	}
	for i, w := range c.Weights {
		if w <= 0 {
			return fmt.Errorf("%w: weight %d must be positive, got %d", ErrInvalidConfig, i, w)
		}
	}
	if c.PeakThreshold < 0 || c.PeakThreshold > 1 {
		return fmt.Errorf("%w: peak threshold must be within [0,1], got %v", ErrInvalidConfig, c.PeakThreshold)
	}
	if c.PeakWindowDays < 0 {
		return fmt.Errorf("%w: peak window must be positive, got %d", ErrInvalidConfig, c.PeakWindowDays)
	}
	if c.MediumRatio < 0 || c.MediumRatio >= c.HighRatio {
		return fmt.Errorf("%w: need 0 <= medium ratio (%v) < high ratio (%v)", ErrInvalidConfig, c.MediumRatio, c.HighRatio)
	}
	for name, v := range map[string]float64{
		"low data confidence":  c.LowDataConfidence,
		"zero mean confidence": c.ZeroMeanConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidConfig, name, v)
		}
	}
	if c.MinDataPoints < 0 {
		return fmt.Errorf("%w: min data points must be positive, got %d", ErrInvalidConfig, c.MinDataPoints)
	}
	return nil
}
