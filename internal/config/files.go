/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/models"
)

// LoadTuningFile overlays the "forecast" section of a YAML, TOML or JSON file
// onto base. Keys missing from the file keep their base value.
func LoadTuningFile(path string, base forecast.Config) (forecast.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return base, fmt.Errorf("read tuning file %s: %w", path, err)
	}

	out := base
	if v.IsSet("forecast.weights") {
		// mapstructure overwrites slices element-wise; start empty so a
		// shorter list is not padded with base weights.
		out.Weights = nil
	}
	if v.IsSet("forecast") {
		if err := v.UnmarshalKey("forecast", &out); err != nil {
			return base, fmt.Errorf("decode tuning file %s: %w", path, err)
		}
	}
	return out, nil
}

type slotFile struct {
	Slots []models.Slot `yaml:"slots"`
}

// LoadSlotCatalog reads a YAML slot list. File order is catalog order.
func LoadSlotCatalog(path string) (*models.SlotCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read slots file: %w", err)
	}

	var f slotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse slots file %s: %w", path, err)
	}

	catalog := models.NewSlotCatalog(f.Slots)
	if catalog.Len() == 0 {
		return nil, fmt.Errorf("slots file %s defines no slots", path)
	}
	return catalog, nil
}
