/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/models"
	"github.com/friendsincode/stallcast/internal/orders"
	"github.com/friendsincode/stallcast/internal/orderstore"
)

type congestionResponse struct {
	StallID      string                   `json:"stall_id"`
	Slot         string                   `json:"slot"`
	Date         string                   `json:"date"`
	Level        forecast.CongestionLevel `json:"congestion"`
	CurrentCount int                      `json:"current_orders"`
	MaxCapacity  int                      `json:"max_capacity"`
	Warning      string                   `json:"warning,omitempty"`
}

type forecastResponse struct {
	StallID string `json:"stall_id"`
	Slot    string `json:"slot"`
	Date    string `json:"date"`
	forecast.ForecastResult
	ConfidencePercent int `json:"confidence_percent"`
}

type stallPredictions struct {
	StallID     string                  `json:"stall_id"`
	StallName   string                  `json:"stall_name"`
	Predictions []forecast.SlotForecast `json:"predictions"`
}

func (a *API) handleSlots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"slots": a.engine.Catalog().Slots(),
	})
}

// handleSlotDemand reports live load of every slot. A missing stall yields
// low/0 everywhere rather than an error.
func (a *API) handleSlotDemand(w http.ResponseWriter, r *http.Request) {
	stallID := r.URL.Query().Get("stall_id")
	date := a.queryDate(r, "date", a.engine.Today())

	writeJSON(w, http.StatusOK, map[string]any{
		"stall_id": stallID,
		"date":     formatDate(date),
		"slots":    a.engine.SlotLoads(r.Context(), stallID, date),
	})
}

func (a *API) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	stallID := chi.URLParam(r, "stallID")
	date := a.queryDate(r, "date", a.engine.Today())

	writeJSON(w, http.StatusOK, map[string]any{
		"stall_id":        stallID,
		"date":            formatDate(date),
		"recommendations": a.engine.Recommend(r.Context(), stallID, date),
	})
}

func (a *API) handleCongestion(w http.ResponseWriter, r *http.Request) {
	stallID := chi.URLParam(r, "stallID")
	slot := r.URL.Query().Get("slot")
	if !a.engine.Catalog().Has(slot) {
		writeError(w, http.StatusBadRequest, "unknown_slot")
		return
	}
	date := a.queryDate(r, "date", a.engine.Today())

	level, count := a.engine.Classify(r.Context(), stallID, slot, date)
	resp := congestionResponse{
		StallID:      stallID,
		Slot:         slot,
		Date:         formatDate(date),
		Level:        level,
		CurrentCount: count,
		MaxCapacity:  a.engine.Config().MaxCapacity,
	}
	if level == forecast.CongestionHigh {
		resp.Warning = orders.CongestionWarning(slot, count)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleForecast predicts one slot, or every slot when none is given.
// The date defaults to tomorrow.
func (a *API) handleForecast(w http.ResponseWriter, r *http.Request) {
	stallID := chi.URLParam(r, "stallID")
	date := a.queryDate(r, "date", a.engine.Today().AddDate(0, 0, 1))

	slot := r.URL.Query().Get("slot")
	if slot == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"stall_id":    stallID,
			"date":        formatDate(date),
			"predictions": a.engine.PredictSlots(r.Context(), stallID, date),
		})
		return
	}
	if !a.engine.Catalog().Has(slot) {
		writeError(w, http.StatusBadRequest, "unknown_slot")
		return
	}

	res := a.engine.Predict(r.Context(), stallID, slot, date)
	writeJSON(w, http.StatusOK, forecastResponse{
		StallID:           stallID,
		Slot:              slot,
		Date:              formatDate(date),
		ForecastResult:    res,
		ConfidencePercent: res.ConfidencePercent(),
	})
}

func (a *API) handlePeakHours(w http.ResponseWriter, r *http.Request) {
	stallID := chi.URLParam(r, "stallID")
	days := queryInt(r, "days", 0)

	analysis := a.engine.AnalyzePeakHours(r.Context(), stallID, days)
	writeJSON(w, http.StatusOK, map[string]any{
		"stall_id":    stallID,
		"window_days": analysis.WindowDays,
		"from":        formatDate(analysis.From),
		"to":          formatDate(analysis.To),
		"slot_counts": analysis.SlotCounts,
		"peak_slots":  analysis.PeakSlots,
	})
}

// handleDashboardPredictions predicts every slot of every open stall.
func (a *API) handleDashboardPredictions(w http.ResponseWriter, r *http.Request) {
	date := a.queryDate(r, "date", a.engine.Today().AddDate(0, 0, 1))

	var stalls []models.Stall
	if err := a.db.WithContext(r.Context()).Where("is_open = ?", true).Order("name").Find(&stalls).Error; err != nil {
		a.logger.Error().Err(err).Msg("list stalls failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]stallPredictions, 0, len(stalls))
	for _, s := range stalls {
		out = append(out, stallPredictions{
			StallID:     s.ID,
			StallName:   s.Name,
			Predictions: a.engine.PredictSlots(r.Context(), s.ID, date),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":   formatDate(date),
		"stalls": out,
	})
}

// handleDashboardSlots breaks down one day's orders per slot, for one stall
// or, without stall_id, the whole campus.
func (a *API) handleDashboardSlots(w http.ResponseWriter, r *http.Request) {
	stallID := r.URL.Query().Get("stall_id")
	date := a.queryDate(r, "date", a.engine.Today())

	slots, err := orderstore.NewGormStore(a.db).SlotBreakdown(r.Context(), a.engine.Catalog(), stallID, date)
	if err != nil {
		a.logger.Error().Err(err).Str("stall_id", stallID).Msg("slot breakdown failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	var total, pending int64
	var revenue float64
	for _, s := range slots {
		total += s.TotalOrders
		pending += s.Pending
		revenue += s.Revenue
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stall_id":      stallID,
		"date":          formatDate(date),
		"total_orders":  total,
		"total_revenue": revenue,
		"pending_count": pending,
		"slots":         slots,
	})
}

func (a *API) handleForecastAccuracy(w http.ResponseWriter, r *http.Request) {
	if a.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshots_disabled")
		return
	}

	stallID := chi.URLParam(r, "stallID")
	days := queryInt(r, "days", 14)
	if days < 1 {
		days = 14
	}
	to := a.engine.Today().AddDate(0, 0, -1)
	from := to.AddDate(0, 0, -(days - 1))

	acc, err := a.snapshots.ForecastAccuracy(r.Context(), stallID, from, to)
	if err != nil {
		a.logger.Error().Err(err).Str("stall_id", stallID).Msg("forecast accuracy failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

