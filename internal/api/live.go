/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/stallcast/internal/events"
	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/telemetry"
)

const livePingInterval = 15 * time.Second

type liveMessage struct {
	Type    string              `json:"type"`
	StallID string              `json:"stall_id"`
	Date    string              `json:"date"`
	Trigger string              `json:"trigger,omitempty"`
	Slots   []forecast.SlotLoad `json:"slots"`
}

// handleLive streams slot loads of one stall and date. A fresh snapshot is
// pushed whenever an order of that stall and date is placed or changes status.
func (a *API) handleLive(w http.ResponseWriter, r *http.Request) {
	if a.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "live_feed_disabled")
		return
	}

	stallID := chi.URLParam(r, "stallID")
	date := a.queryDate(r, "date", a.engine.Today())
	day := formatDate(date)

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.LiveSubscribersActive.Inc()
	defer telemetry.LiveSubscribersActive.Dec()

	// The client never sends; CloseRead cancels ctx once it disconnects.
	ctx := conn.CloseRead(r.Context())

	placed := a.bus.Subscribe(events.EventOrderPlaced)
	defer a.bus.Unsubscribe(events.EventOrderPlaced, placed)
	changed := a.bus.Subscribe(events.EventOrderStatus)
	defer a.bus.Unsubscribe(events.EventOrderStatus, changed)

	push := func(msgType, trigger string) error {
		return writeLive(ctx, conn, liveMessage{
			Type:    msgType,
			StallID: stallID,
			Date:    day,
			Trigger: trigger,
			Slots:   a.engine.SlotLoads(ctx, stallID, date),
		})
	}

	if err := push("snapshot", ""); err != nil {
		return
	}

	ticker := time.NewTicker(livePingInterval)
	defer ticker.Stop()

	relevant := func(p events.Payload) bool {
		return p.String("stall_id") == stallID && p.String("pickup_date") == day
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case <-ticker.C:
			err = conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`))
		case p, ok := <-placed:
			if !ok {
				return
			}
			if relevant(p) {
				err = push("update", string(events.EventOrderPlaced))
			}
		case p, ok := <-changed:
			if !ok {
				return
			}
			if relevant(p) {
				err = push("update", string(events.EventOrderStatus))
			}
		}
		if err != nil {
			a.logger.Debug().Err(err).Str("stall_id", stallID).Msg("live feed write failed")
			return
		}
	}
}

func writeLive(ctx context.Context, conn *ws.Conn, msg liveMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, data)
}
