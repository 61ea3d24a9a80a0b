/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/stallcast/internal/analytics"
	"github.com/friendsincode/stallcast/internal/audit"
	"github.com/friendsincode/stallcast/internal/db"
	"github.com/friendsincode/stallcast/internal/events"
	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/logbuffer"
	"github.com/friendsincode/stallcast/internal/models"
	"github.com/friendsincode/stallcast/internal/orders"
	"github.com/friendsincode/stallcast/internal/orderstore"
	"github.com/friendsincode/stallcast/internal/version"
)

var today = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) // Monday

type testEnv struct {
	db     *gorm.DB
	api    *API
	router chi.Router
	stall  models.Stall
	dosa   models.MenuItem
	logs   *logbuffer.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gdb))

	env := &testEnv{db: gdb, logs: logbuffer.New(100)}
	env.stall = models.Stall{ID: uuid.NewString(), Name: "South Spice", IsOpen: true}
	require.NoError(t, gdb.Create(&env.stall).Error)
	env.dosa = models.MenuItem{ID: uuid.NewString(), StallID: env.stall.ID, Name: "Masala Dosa", Price: 40, PrepTimeMinutes: 8, IsAvailable: true}
	require.NoError(t, gdb.Create(&env.dosa).Error)

	// 10, 8, 6, 4 lunch orders on the Tuesdays before tomorrow.
	tomorrow := today.AddDate(0, 0, 1)
	for i, n := range []int{10, 8, 6, 4} {
		for j := 0; j < n; j++ {
			require.NoError(t, gdb.Create(&models.Order{
				ID:         uuid.NewString(),
				StallID:    env.stall.ID,
				Slot:       "12:00",
				PickupDate: tomorrow.AddDate(0, 0, -7*(i+1)),
				Status:     models.OrderCompleted,
			}).Error)
		}
	}

	store := orderstore.NewGormStore(gdb)
	engine, err := forecast.NewEngine(store, models.DefaultSlotCatalog(), forecast.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	engine.SetClock(func() time.Time { return today.Add(9 * time.Hour) })

	bus := events.NewBus()
	orderSvc := orders.NewService(gdb, engine.Catalog(), engine, bus, zerolog.Nop())
	orderSvc.SetClock(func() time.Time { return today.Add(9 * time.Hour) })

	env.api = New(gdb, engine, orderSvc, bus, env.logs, zerolog.Nop())
	env.api.SetSnapshotService(analytics.NewSnapshotService(gdb, engine, store, zerolog.Nop()))
	env.router = chi.NewRouter()
	env.api.Routes(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) placeOrder(t *testing.T, slot string) map[string]any {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/orders", map[string]any{
		"user_id":     uuid.NewString(),
		"stall_id":    e.stall.ID,
		"slot":        slot,
		"pickup_date": "2026-10-19",
		"items":       []map[string]any{{"menu_item_id": e.dosa.ID, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestVersionWithoutCheckerReportsCurrent(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/system/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, version.Version, body["version"])
	update := body["update"].(map[string]any)
	assert.Equal(t, false, update["update_available"])
	assert.Equal(t, "disabled", update["status"])
}

func TestSlotsListsCatalogInOrder(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/slots", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	slots := decode(t, rec)["slots"].([]any)
	require.Len(t, slots, 4)
	assert.Equal(t, "10:00", slots[0].(map[string]any)["slot"])
	assert.Equal(t, "15:00", slots[3].(map[string]any)["slot"])
}

func TestSlotDemandWithoutStallIsLowEverywhere(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/slots/demand?date=not-a-date", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "2026-10-19", body["date"], "malformed dates fall back to today")
	for _, s := range body["slots"].([]any) {
		load := s.(map[string]any)
		assert.Equal(t, "low", load["congestion"])
		assert.Equal(t, 0.0, load["current_orders"])
	}
}

func TestForecastDefaultsToTomorrow(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/stalls/"+env.stall.ID+"/forecast?slot=12:00", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "2026-10-20", body["date"])
	assert.Equal(t, 8.0, body["predicted_quantity"])
	assert.Equal(t, 0.68, body["confidence"])
	assert.Equal(t, 68.0, body["confidence_percent"])

	rec = env.do(t, http.MethodGet, "/api/v1/stalls/"+env.stall.ID+"/forecast", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["predictions"], 4)

	rec = env.do(t, http.MethodGet, "/api/v1/stalls/"+env.stall.ID+"/forecast?slot=11:00", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPeakHoursAndDashboard(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/stalls/"+env.stall.ID+"/peak-hours?days=30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, []any{"12:00"}, body["peak_slots"])
	assert.Equal(t, 30.0, body["window_days"])

	rec = env.do(t, http.MethodGet, "/api/v1/dashboard/predictions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stalls := decode(t, rec)["stalls"].([]any)
	require.Len(t, stalls, 1)
	assert.Equal(t, "South Spice", stalls[0].(map[string]any)["stall_name"])
}

func TestPlaceOrderThenCongestionAndRecommendations(t *testing.T) {
	env := newTestEnv(t)

	placed := env.placeOrder(t, "12:00")
	assert.Equal(t, "1910001", placed["token"])
	assert.Equal(t, "low", placed["congestion"])

	rec := env.do(t, http.MethodGet, "/api/v1/stalls/"+env.stall.ID+"/congestion?slot=12:00&date=2026-10-19", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 1.0, body["current_orders"])
	assert.Equal(t, 50.0, body["max_capacity"])
	assert.Nil(t, body["warning"])

	rec = env.do(t, http.MethodGet, "/api/v1/stalls/"+env.stall.ID+"/recommendations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	recs := decode(t, rec)["recommendations"].([]any)
	require.Len(t, recs, 4)
	assert.Equal(t, "12:00", recs[3].(map[string]any)["slot"], "the only loaded slot ranks last")

	rec = env.do(t, http.MethodGet, "/api/v1/stalls/"+env.stall.ID+"/congestion?slot=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrderErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"empty cart", map[string]any{"stall_id": env.stall.ID, "slot": "10:00"}, http.StatusBadRequest, "empty_cart"},
		{"bad slot", map[string]any{"stall_id": env.stall.ID, "slot": "09:00"}, http.StatusBadRequest, "unknown_slot"},
		{"missing stall", map[string]any{"slot": "10:00"}, http.StatusBadRequest, "stall_id_required"},
		{"unknown stall", map[string]any{
			"stall_id": uuid.NewString(), "slot": "10:00",
			"items": []map[string]any{{"menu_item_id": env.dosa.ID, "quantity": 1}},
		}, http.StatusNotFound, "stall_not_found"},
		{"unpriced cart", map[string]any{
			"stall_id": env.stall.ID, "slot": "10:00",
			"items": []map[string]any{{"menu_item_id": "ghost", "quantity": 1}},
		}, http.StatusBadRequest, "invalid_cart_items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/orders", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode(t, rec)["error"])
		})
	}
}

func TestOrderLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t)
	order := env.placeOrder(t, "10:00")["order"].(map[string]any)
	id := order["id"].(string)

	rec := env.do(t, http.MethodPost, "/api/v1/orders/"+id+"/status", map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/orders/"+id+"/status", map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", decode(t, rec)["status"])

	rec = env.do(t, http.MethodPost, "/api/v1/orders/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode(t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/api/v1/orders/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 1)

	rec = env.do(t, http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestForecastAccuracyEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/stalls/"+env.stall.ID+"/forecast-accuracy?days=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 0.0, body["samples"])
}

func TestDashboardSlotsBreaksDownToday(t *testing.T) {
	env := newTestEnv(t)
	first := env.placeOrder(t, "12:00")["order"].(map[string]any)
	env.placeOrder(t, "12:00")
	env.placeOrder(t, "10:00")

	id := first["id"].(string)
	for _, status := range []string{"confirmed", "preparing"} {
		rec := env.do(t, http.MethodPost, "/api/v1/orders/"+id+"/status", map[string]string{"status": status})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodGet, "/api/v1/dashboard/slots?stall_id="+env.stall.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "2026-10-19", body["date"])
	assert.Equal(t, 3.0, body["total_orders"])
	assert.Equal(t, 240.0, body["total_revenue"])
	assert.Equal(t, 2.0, body["pending_count"])

	slots := body["slots"].([]any)
	require.Len(t, slots, 4)
	lunch := slots[1].(map[string]any)
	assert.Equal(t, "12:00", lunch["slot"])
	assert.Equal(t, 2.0, lunch["total_orders"])
	assert.Equal(t, 160.0, lunch["revenue"])
	assert.Equal(t, 1.0, lunch["pending"])
	assert.Equal(t, 1.0, lunch["preparing"])
	assert.Equal(t, 0.0, lunch["completed"])

	// The seeded history sits on earlier Tuesdays.
	rec = env.do(t, http.MethodGet, "/api/v1/dashboard/slots?date=2026-10-13", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lunch = decode(t, rec)["slots"].([]any)[1].(map[string]any)
	assert.Equal(t, 10.0, lunch["completed"])
}

func TestRateLimiterRejectsBursts(t *testing.T) {
	env := newTestEnv(t)
	limiter := NewRateLimiter(0.001, 1)
	env.api.SetRateLimiter(limiter)
	env.router = chi.NewRouter()
	env.api.Routes(env.router)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/slots", nil).Code)
	rec := env.do(t, http.MethodGet, "/api/v1/slots", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decode(t, rec)["error"])

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/health", nil).Code, "health is never limited")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	r.Header.Set("X-Real-IP", "203.0.113.10")
	assert.Equal(t, "10.0.0.7", clientIP(r), "headers alone do not pick the bucket")

	r.RemoteAddr = "10.0.0.8"
	assert.Equal(t, "10.0.0.8", clientIP(r))
}

func TestRateLimiterIgnoresSpoofedForwardedFor(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.2"))
}

func TestSystemLogsFilterByStall(t *testing.T) {
	env := newTestEnv(t)
	env.logs.Add(logbuffer.LogEntry{Timestamp: today, Level: "info", Component: "orders", Message: "order placed", Fields: map[string]any{"stall_id": env.stall.ID}})
	env.logs.Add(logbuffer.LogEntry{Timestamp: today, Level: "warn", Component: "forecast", Message: "order count failed"})

	rec := env.do(t, http.MethodGet, "/api/v1/system/logs?stall_id="+env.stall.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 1.0, body["count"])
	assert.Equal(t, "South Spice", body["stall_names"].(map[string]any)[env.stall.ID])

	rec = env.do(t, http.MethodGet, "/api/v1/system/logs/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decode(t, rec)["count"])
}

func TestLiveFeedPushesOnOrders(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stalls/" + env.stall.ID + "/live?date=2026-10-19"
	conn, _, err := ws.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(ws.StatusNormalClosure, "")

	read := func() liveMessage {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg liveMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	first := read()
	assert.Equal(t, "snapshot", first.Type)
	require.Len(t, first.Slots, 4)
	assert.Zero(t, first.Slots[2].CurrentCount)

	env.placeOrder(t, "13:00")

	update := read()
	assert.Equal(t, "update", update.Type)
	assert.Equal(t, "order.placed", update.Trigger)
	assert.Equal(t, "13:00", update.Slots[2].Slot)
	assert.Equal(t, 1, update.Slots[2].CurrentCount)
}

func TestAuditDisabledWithoutService(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/audit", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOrderHistoryFollowsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	bus := env.api.bus.(*events.Bus)
	auditSvc := audit.NewService(env.db, bus, zerolog.Nop())
	env.api.SetAuditService(auditSvc)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go auditSvc.Start(ctx)
	require.Eventually(t, func() bool {
		return bus.SubscriberCount(events.EventLeaderLost) == 1
	}, time.Second, 5*time.Millisecond)

	id := env.placeOrder(t, "10:00")["order"].(map[string]any)["id"].(string)
	rec := env.do(t, http.MethodPost, "/api/v1/orders/"+id+"/status", map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/v1/orders/"+id+"/history", nil)
		if rec.Code != http.StatusOK {
			return false
		}
		body = decode(t, rec)
		return body["total"] == 2.0
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, id, body["order_id"])
	latest := body["audit_logs"].([]any)[0].(map[string]any)
	assert.Equal(t, env.stall.ID, latest["stall_id"])
	assert.Equal(t, "order", latest["resource_type"])

	rec = env.do(t, http.MethodGet, "/api/v1/stalls/"+env.stall.ID+"/activity?action=order.placed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["total"])
}
