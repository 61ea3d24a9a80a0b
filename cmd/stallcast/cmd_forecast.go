/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/friendsincode/stallcast/internal/db"
	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/models"
)

var (
	forecastStall  string
	forecastDate   string
	forecastSlot   string
	peakWindowDays int
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Print predicted orders per slot for a stall",
	Long: `Predicts the number of orders a stall will receive in each pickup slot on a
date, from the same weekday in the preceding weeks. The date defaults to
tomorrow.

Examples:
  stallcast forecast --stall "Tiffin Corner"
  stallcast forecast --stall <uuid> --date 2026-10-20 --slot 12:00`,
	RunE: runForecast,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank pickup slots from least to most congested",
	Long: `Classifies the live order load of every slot of a stall on a date and ranks
the slots from quietest to busiest. The date defaults to today.`,
	RunE: runRecommend,
}

var peaksCmd = &cobra.Command{
	Use:   "peaks",
	Short: "Show the peak slots of a stall over a trailing window",
	RunE:  runPeaks,
}

func init() {
	for _, c := range []*cobra.Command{forecastCmd, recommendCmd, peaksCmd} {
		c.Flags().StringVar(&forecastStall, "stall", "", "Stall id or name (required)")
		_ = c.MarkFlagRequired("stall")
		rootCmd.AddCommand(c)
	}
	forecastCmd.Flags().StringVar(&forecastDate, "date", "", "Target date YYYY-MM-DD (default tomorrow)")
	forecastCmd.Flags().StringVar(&forecastSlot, "slot", "", "Single slot, e.g. 12:00 (default all slots)")
	recommendCmd.Flags().StringVar(&forecastDate, "date", "", "Pickup date YYYY-MM-DD (default today)")
	peaksCmd.Flags().IntVar(&peakWindowDays, "window", 0, "Trailing window in days (default from config)")
}

func runForecast(cmd *cobra.Command, args []string) error {
	engine, stall, cleanup, err := openEngineForStall()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	target := forecastTarget(forecastDate, engine.Today())

	var forecasts []forecast.SlotForecast
	if forecastSlot != "" {
		slot, ok := engine.Catalog().Lookup(forecastSlot)
		if !ok {
			return fmt.Errorf("unknown slot %q (known: %s)", forecastSlot, strings.Join(engine.Catalog().Keys(), ", "))
		}
		r := engine.Predict(ctx, stall.ID, slot.Key, target)
		forecasts = []forecast.SlotForecast{{Slot: slot.Key, Label: slot.Label, ForecastResult: r, ConfidencePercent: r.ConfidencePercent()}}
	} else {
		forecasts = engine.PredictSlots(ctx, stall.ID, target)
	}

	rows := make([][]string, 0, len(forecasts))
	for _, f := range forecasts {
		rows = append(rows, []string{
			f.Slot,
			f.Label,
			strconv.Itoa(f.PredictedQuantity),
			fmt.Sprintf("%d%%", f.ConfidencePercent),
		})
	}
	renderTable(os.Stdout,
		fmt.Sprintf("%s · forecast for %s (%s)", stall.Name, target.Format("2006-01-02"), target.Weekday()),
		[]string{"Slot", "Label", "Predicted", "Confidence"}, rows, -1)
	return nil
}

func runRecommend(cmd *cobra.Command, args []string) error {
	engine, stall, cleanup, err := openEngineForStall()
	if err != nil {
		return err
	}
	defer cleanup()

	date := forecast.ParseDate(forecastDate, engine.Today())
	loads := engine.Recommend(context.Background(), stall.ID, date)

	rows := make([][]string, 0, len(loads))
	for i, l := range loads {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			l.Slot,
			l.Label,
			string(l.Level),
			strconv.Itoa(l.CurrentCount),
		})
	}
	renderTable(os.Stdout,
		fmt.Sprintf("%s · recommended slots for %s", stall.Name, date.Format("2006-01-02")),
		[]string{"#", "Slot", "Label", "Congestion", "Orders"}, rows, 3)
	if len(loads) > 0 {
		renderNote(os.Stdout, "Best pickup: %s", loads[0].Label)
	}
	return nil
}

func runPeaks(cmd *cobra.Command, args []string) error {
	engine, stall, cleanup, err := openEngineForStall()
	if err != nil {
		return err
	}
	defer cleanup()

	window := peakWindowDays
	if window <= 0 {
		window = engine.Config().PeakWindowDays
	}
	analysis := engine.AnalyzePeakHours(context.Background(), stall.ID, window)

	rows := make([][]string, 0, engine.Catalog().Len())
	for _, slot := range engine.Catalog().Slots() {
		peak := ""
		if analysis.IsPeak(slot.Key) {
			peak = "peak"
		}
		rows = append(rows, []string{slot.Key, slot.Label, strconv.Itoa(analysis.SlotCounts[slot.Key]), peak})
	}
	renderTable(os.Stdout,
		fmt.Sprintf("%s · demand %s to %s", stall.Name, analysis.From.Format("2006-01-02"), analysis.To.Format("2006-01-02")),
		[]string{"Slot", "Label", "Orders", ""}, rows, -1)
	if len(analysis.PeakSlots) == 0 {
		renderNote(os.Stdout, "No orders in the window.")
	}
	return nil
}

// forecastTarget is tomorrow when --date is absent. A malformed --date falls
// back to today like every other date input.
func forecastTarget(raw string, today time.Time) time.Time {
	if raw == "" {
		return today.AddDate(0, 0, 1)
	}
	return forecast.ParseDate(raw, today)
}

// openEngineForStall loads config, the database and the stall named by --stall.
func openEngineForStall() (*forecast.Engine, models.Stall, func(), error) {
	var stall models.Stall
	if err := loadConfig(); err != nil {
		return nil, stall, nil, err
	}
	database, err := initDatabase()
	if err != nil {
		return nil, stall, nil, fmt.Errorf("initialize database: %w", err)
	}
	cleanup := func() { _ = db.Close(database) }

	stall, err = resolveStall(database, forecastStall)
	if err != nil {
		cleanup()
		return nil, stall, nil, err
	}

	engine, err := newEngine(database)
	if err != nil {
		cleanup()
		return nil, stall, nil, err
	}
	return engine, stall, cleanup, nil
}

// resolveStall accepts a stall id or an exact, case-insensitive name.
func resolveStall(database *gorm.DB, ref string) (models.Stall, error) {
	var stall models.Stall
	if _, err := uuid.Parse(ref); err == nil {
		err := database.Where("id = ?", ref).First(&stall).Error
		if err == nil {
			return stall, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return stall, fmt.Errorf("lookup stall: %w", err)
		}
	}
	err := database.Where("LOWER(name) = ?", strings.ToLower(ref)).First(&stall).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return stall, fmt.Errorf("stall %q not found", ref)
	}
	if err != nil {
		return stall, fmt.Errorf("lookup stall: %w", err)
	}
	return stall, nil
}
