/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/stallcast/internal/logbuffer"
	"github.com/friendsincode/stallcast/internal/models"
)

func (a *API) handleSystemLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "Log buffer not available",
		})
		return
	}

	// Parse query parameters
	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		StallID:    r.URL.Query().Get("stall_id"),
		Search:     r.URL.Query().Get("search"),
		Descending: true, // Default to newest first
	}

	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			params.Since = t
		}
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			params.Limit = n
		}
	} else {
		params.Limit = 500 // Default limit
	}

	if order := r.URL.Query().Get("order"); order == "asc" {
		params.Descending = false
	}

	entries := a.logBuffer.Query(params)

	// Collect unique stall IDs and fetch their names
	stallIDs := make(map[string]bool)
	for _, entry := range entries {
		if sid := entry.StallID(); sid != "" {
			stallIDs[sid] = true
		}
	}

	stallNames := make(map[string]string)
	if len(stallIDs) > 0 && a.db != nil {
		ids := make([]string, 0, len(stallIDs))
		for id := range stallIDs {
			ids = append(ids, id)
		}
		var stalls []models.Stall
		a.db.WithContext(r.Context()).Select("id", "name").Where("id IN ?", ids).Find(&stalls)
		for _, s := range stalls {
			stallNames[s.ID] = s.Name
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries":     entries,
		"count":       len(entries),
		"stall_names": stallNames,
	})
}

func (a *API) handleLogStats(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "Log buffer not available",
		})
		return
	}

	writeJSON(w, http.StatusOK, a.logBuffer.Stats(r.URL.Query().Get("stall_id")))
}

func (a *API) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "Log buffer not available",
		})
		return
	}

	a.logBuffer.Clear()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Log buffer cleared",
	})
}
