/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/stallcast/internal/analytics"
	"github.com/friendsincode/stallcast/internal/api"
	"github.com/friendsincode/stallcast/internal/audit"
	"github.com/friendsincode/stallcast/internal/cache"
	"github.com/friendsincode/stallcast/internal/config"
	"github.com/friendsincode/stallcast/internal/db"
	"github.com/friendsincode/stallcast/internal/eventbus"
	"github.com/friendsincode/stallcast/internal/events"
	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/leadership"
	"github.com/friendsincode/stallcast/internal/logbuffer"
	"github.com/friendsincode/stallcast/internal/orders"
	"github.com/friendsincode/stallcast/internal/orderstore"
	"github.com/friendsincode/stallcast/internal/report"
	"github.com/friendsincode/stallcast/internal/telemetry"
	"github.com/friendsincode/stallcast/internal/version"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db          *gorm.DB
	cache       *cache.Cache
	logBuffer   *logbuffer.Buffer
	bus         events.Broker
	engine      *forecast.Engine
	orders      *orders.Service
	snapshots   *analytics.SnapshotService
	snapshotJob *analytics.Scheduler
	auditSvc    *audit.Service
	election    *leadership.Election
	updates     *version.Checker
	api         *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.HTTPMiddleware("stallcast-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Live feeds are long lived; everything else gets a request timeout.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(30 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	if logBuf == nil {
		logBuf = logbuffer.New(0)
	}

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Live websocket handlers manage their own deadlines.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	bus, err := s.newEventBus()
	if err != nil {
		return err
	}
	s.bus = bus

	source := orderstore.NewGormStore(database)
	engine, err := forecast.NewEngine(source, s.cfg.Slots, s.cfg.Forecast, s.logger)
	if err != nil {
		return fmt.Errorf("create forecast engine: %w", err)
	}
	s.engine = engine

	s.orders = orders.NewService(database, s.cfg.Slots, engine, s.bus, s.logger)

	// Forecasts and peak analyses are cached; congestion always reads live counts.
	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		resultCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = resultCache
			s.DeferClose(func() error { return s.cache.Close() })
			engine.SetCache(resultCache)
			s.orders.SetInvalidator(resultCache)
		}
	}

	s.snapshots = analytics.NewSnapshotService(database, engine, source, s.logger)

	var gate leadership.Gate = leadership.AlwaysLeader{}
	if s.cfg.LeaderElectionEnabled {
		electionConfig := leadership.DefaultConfig()
		electionConfig.RedisAddr = s.cfg.RedisAddr
		electionConfig.RedisPassword = s.cfg.RedisPassword
		electionConfig.RedisDB = s.cfg.RedisDB
		if s.cfg.InstanceID != "" {
			electionConfig.InstanceID = s.cfg.InstanceID
		}

		election, err := leadership.NewElection(electionConfig, s.logger)
		if err != nil {
			return fmt.Errorf("create leader election: %w", err)
		}
		election.SetEventBus(s.bus)
		s.election = election
		s.DeferClose(func() error { return election.Stop() })
		gate = election

		s.logger.Info().
			Str("redis_addr", s.cfg.RedisAddr).
			Str("instance_id", electionConfig.InstanceID).
			Msg("leader election enabled for snapshot job")
	}

	s.snapshotJob = analytics.NewScheduler(s.snapshots, gate, s.cfg.SnapshotInterval, s.logger)
	s.snapshotJob.SetEventBus(s.bus)

	exporter, err := report.FromConfig(context.Background(), s.cfg, s.logger)
	if err != nil {
		return err
	}
	if exporter != nil {
		s.snapshotJob.SetExporter(exporter)
	}

	s.auditSvc = audit.NewService(database, s.bus, s.logger)
	s.updates = version.NewChecker(version.ReleaseConfig{
		Repo:     s.cfg.ReleaseRepo,
		APIURL:   s.cfg.ReleaseAPIURL,
		Interval: s.cfg.ReleaseCheckInterval,
	}, s.logger)

	s.api = api.New(database, engine, s.orders, s.bus, s.logBuffer, s.logger)
	s.api.SetSnapshotService(s.snapshots)
	s.api.SetAuditService(s.auditSvc)
	s.api.SetUpdateChecker(s.updates)
	if s.cfg.RateLimitRPS > 0 {
		s.api.SetRateLimiter(api.NewRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))
	}

	return nil
}

// newEventBus picks the broker that fans events out to every instance.
func (s *Server) newEventBus() (events.Broker, error) {
	nodeID := s.cfg.InstanceID
	if nodeID == "" {
		nodeID = eventbus.NodeID()
	}

	switch s.cfg.EventBus {
	case config.EventBusRedis:
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = s.cfg.RedisAddr
		redisCfg.Password = s.cfg.RedisPassword
		redisCfg.DB = s.cfg.RedisDB
		bus, err := eventbus.NewRedisBus(redisCfg, nodeID, s.logger)
		if err != nil {
			return nil, fmt.Errorf("create redis event bus: %w", err)
		}
		s.DeferClose(bus.Close)
		return bus, nil
	case config.EventBusNATS:
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		bus, err := eventbus.NewNATSBus(natsCfg, nodeID, s.logger)
		if err != nil {
			return nil, fmt.Errorf("create nats event bus: %w", err)
		}
		s.DeferClose(bus.Close)
		return bus, nil
	default:
		return events.NewBus(), nil
	}
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the routed handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// LogBuffer returns the server's log buffer for attaching to zerolog.
func (s *Server) LogBuffer() *logbuffer.Buffer {
	return s.logBuffer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.election != nil {
		s.election.Start(ctx)
	}

	if s.snapshotJob != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.snapshotJob.Start(ctx)
		}()
	}

	if s.updates != nil && s.cfg.ReleaseRepo != "" {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.updates.Start(ctx)
		}()
	}

	if s.auditSvc != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.auditSvc.Start(ctx)
		}()
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.runCongestionListener(ctx)
	}()

	// Pool metrics
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()
}

// runCongestionListener logs every slot that crosses into high congestion.
func (s *Server) runCongestionListener(ctx context.Context) {
	congested := s.bus.Subscribe(events.EventSlotCongested)
	defer s.bus.Unsubscribe(events.EventSlotCongested, congested)

	s.logger.Info().Msg("congestion listener started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("congestion listener stopped")
			return
		case payload, ok := <-congested:
			if !ok {
				return
			}
			s.logger.Warn().
				Str("stall_id", payload.String("stall_id")).
				Str("slot", payload.String("slot")).
				Str("pickup_date", payload.String("pickup_date")).
				Interface("current_orders", payload["current_orders"]).
				Msg("slot congested")
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := `{"status":"ok"`

		// Add leader status if leader election is enabled
		if s.election != nil {
			if s.election.IsLeader() {
				response += `,"leader":true`
			} else {
				response += `,"leader":false`
			}
		}

		response += `}`
		_, _ = w.Write([]byte(response))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}
