/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/stallcast/internal/analytics"
	"github.com/friendsincode/stallcast/internal/audit"
	"github.com/friendsincode/stallcast/internal/events"
	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/logbuffer"
	"github.com/friendsincode/stallcast/internal/orders"
	"github.com/friendsincode/stallcast/internal/version"
)

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	engine    *forecast.Engine
	orders    *orders.Service
	snapshots *analytics.SnapshotService
	auditSvc  *audit.Service
	bus       events.Broker
	logBuffer *logbuffer.Buffer
	limiter   *RateLimiter
	updates   *version.Checker
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, engine *forecast.Engine, orderSvc *orders.Service, bus events.Broker, logBuf *logbuffer.Buffer, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		engine:    engine,
		orders:    orderSvc,
		bus:       bus,
		logBuffer: logBuf,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// SetSnapshotService enables the forecast accuracy endpoint.
func (a *API) SetSnapshotService(s *analytics.SnapshotService) {
	a.snapshots = s
}

// SetAuditService enables the activity trail endpoints.
func (a *API) SetAuditService(s *audit.Service) {
	a.auditSvc = s
}

// SetUpdateChecker exposes release checks on /system/version.
func (a *API) SetUpdateChecker(c *version.Checker) {
	a.updates = c
}

// SetRateLimiter limits public read endpoints per client.
func (a *API) SetRateLimiter(l *RateLimiter) {
	a.limiter = l
}

// Routes registers every endpoint under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		// Public read endpoints
		r.Group(func(pr chi.Router) {
			if a.limiter != nil {
				pr.Use(a.limiter.Middleware)
			}

			pr.Route("/slots", func(r chi.Router) {
				r.Get("/", a.handleSlots)
				r.Get("/demand", a.handleSlotDemand)
			})

			pr.Route("/stalls/{stallID}", func(r chi.Router) {
				r.Get("/recommendations", a.handleRecommendations)
				r.Get("/congestion", a.handleCongestion)
				r.Get("/forecast", a.handleForecast)
				r.Get("/forecast-accuracy", a.handleForecastAccuracy)
				r.Get("/peak-hours", a.handlePeakHours)
				r.Get("/activity", a.handleStallActivity)
			})

			pr.Get("/dashboard/predictions", a.handleDashboardPredictions)
			pr.Get("/dashboard/slots", a.handleDashboardSlots)
		})

		// Long lived, not rate limited
		r.Get("/stalls/{stallID}/live", a.handleLive)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", a.handlePlaceOrder)
			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", a.handleGetOrder)
				r.Post("/status", a.handleOrderStatus)
				r.Post("/cancel", a.handleCancelOrder)
				r.Get("/history", a.handleOrderHistory)
			})
		})

		r.Get("/audit", a.handleAuditList)

		r.Route("/system", func(r chi.Router) {
			r.Get("/logs", a.handleSystemLogs)
			r.Get("/logs/stats", a.handleLogStats)
			r.Delete("/logs", a.handleClearLogs)
			r.Get("/version", a.handleVersion)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":  "ok",
		"version": version.Version,
	}
	if a.db != nil {
		sqlDB, err := a.db.DB()
		if err != nil || sqlDB.PingContext(r.Context()) != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	info := version.UpdateInfo{CurrentVersion: version.Version, Status: "disabled"}
	if a.updates != nil {
		info = a.updates.Info()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    version.Version,
		"commit":     version.Commit,
		"build_date": version.BuildDate,
		"update":     info,
	})
}

// queryDate parses ?name=YYYY-MM-DD. Absent values yield absent; malformed
// values yield today.
func (a *API) queryDate(r *http.Request, name string, absent time.Time) time.Time {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return absent
	}
	return a.queryDateValue(raw)
}

func (a *API) queryDateValue(raw string) time.Time {
	return forecast.ParseDate(raw, a.engine.Today())
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
