/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/stallcast/internal/db"
	"github.com/friendsincode/stallcast/internal/seed"
)

var (
	seedDays   int
	seedRandom int64
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		database, err := initDatabase()
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		defer func() { _ = db.Close(database) }()
		logger.Info().Str("backend", string(cfg.DBBackend)).Msg("schema up to date")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo stalls, menus and order history",
	Long: `Creates three demo stalls with their menus (stalls that already exist are
kept), completed and cancelled orders for the previous days, and open orders
for today so the congestion feed has something to show.

Examples:
  stallcast seed
  stallcast seed --days 28 --random-seed 42`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedDays, "days", 14, "Days of order history to generate")
	seedCmd.Flags().Int64Var(&seedRandom, "random-seed", 0, "Seed for reproducible data (0 = time based)")
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	src := seedRandom
	if src == 0 {
		src = time.Now().UnixNano()
	}

	res, err := seed.New(database, logger).Run(context.Background(), seed.Options{
		Today:       time.Now(),
		HistoryDays: seedDays,
		Catalog:     cfg.Slots,
		Rand:        rand.New(rand.NewSource(src)),
	})
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	renderTable(os.Stdout, "Demo data", []string{"What", "Created"}, [][]string{
		{"Stalls", strconv.Itoa(res.StallsCreated)},
		{"Menu items", strconv.Itoa(res.MenuItems)},
		{"Historical orders", strconv.Itoa(res.HistoryOrders)},
		{"Orders for today", strconv.Itoa(res.TodayOrders)},
	}, -1)
	return nil
}
