/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/stallcast/internal/models"
	"github.com/friendsincode/stallcast/internal/orders"
)

type placeOrderRequest struct {
	UserID              string            `json:"user_id"`
	StallID             string            `json:"stall_id"`
	Slot                string            `json:"slot"`
	PickupDate          string            `json:"pickup_date"`
	SpecialInstructions string            `json:"special_instructions"`
	Items               []orders.CartItem `json:"items"`
}

type statusRequest struct {
	Status models.OrderStatus `json:"status"`
}

func (a *API) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.StallID == "" {
		writeError(w, http.StatusBadRequest, "stall_id_required")
		return
	}

	pickup := a.engine.Today()
	if req.PickupDate != "" {
		pickup = a.queryDateValue(req.PickupDate)
	}

	placement, err := a.orders.Place(r.Context(), orders.PlaceRequest{
		UserID:              req.UserID,
		StallID:             req.StallID,
		Slot:                req.Slot,
		PickupDate:          pickup,
		SpecialInstructions: req.SpecialInstructions,
		Items:               req.Items,
	})
	if err != nil {
		a.writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"order":          placement.Order,
		"token":          placement.Order.TokenNumber,
		"congestion":     placement.Congestion,
		"current_orders": placement.CurrentCount,
		"warning":        placement.Warning,
	})
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		a.writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	order, err := a.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), req.Status)
	if err != nil {
		a.writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.orders.Cancel(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		a.writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (a *API) writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found")
	case errors.Is(err, orders.ErrStallNotFound):
		writeError(w, http.StatusNotFound, "stall_not_found")
	case errors.Is(err, orders.ErrUnknownSlot):
		writeError(w, http.StatusBadRequest, "unknown_slot")
	case errors.Is(err, orders.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "empty_cart")
	case errors.Is(err, orders.ErrNoValidItems):
		writeError(w, http.StatusBadRequest, "invalid_cart_items")
	case errors.Is(err, orders.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status")
	case errors.Is(err, orders.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition")
	default:
		a.logger.Error().Err(err).Msg("order operation failed")
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}
