package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	apidispatch "github.com/CleanExpo/Disaster-Recovery-sub021/api/dispatch"
	"github.com/CleanExpo/Disaster-Recovery-sub021/api/stream"
	"github.com/CleanExpo/Disaster-Recovery-sub021/config"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/dispatch"
	coremetrics "github.com/CleanExpo/Disaster-Recovery-sub021/core/metrics"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/notify"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/registry"
	"github.com/CleanExpo/Disaster-Recovery-sub021/infra/logger"
	"github.com/CleanExpo/Disaster-Recovery-sub021/infra/metrics"
	infranotify "github.com/CleanExpo/Disaster-Recovery-sub021/infra/notify"
	"github.com/CleanExpo/Disaster-Recovery-sub021/infra/store"
	"github.com/CleanExpo/Disaster-Recovery-sub021/internal/eventbus"
)

// Service orchestrates the dispatch manager, its adapters and the HTTP API.
type Service struct {
	Manager *dispatch.Manager

	cfg      *config.Config
	bus      eventbus.EventBus
	hub      *stream.Hub
	cron     *cron.Cron
	log      logger.Logger
	notifier notify.Notifier
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	recStore, err := newRecordStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("record store: %w", err)
	}

	reg, err := newRegistry(cfg.Roster)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	notifier, err := newNotifier(cfg.Notifier)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.Influx.Enabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics.Influx))
	}
	var sink coremetrics.Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = coremetrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	manager, err := dispatch.NewManager(cfg.Dispatch, reg, notifier, recStore, sink, bus, logg, nil)
	if err != nil {
		return nil, fmt.Errorf("dispatch manager: %w", err)
	}
	manager.SetTuner(dispatch.NewResponseTimeTuner(manager.Scorer()))

	svc := &Service{
		Manager:  manager,
		cfg:      cfg,
		bus:      bus,
		log:      logg,
		notifier: notifier,
	}
	svc.hub = stream.NewHub(bus, logger.New("stream"))
	return svc, nil
}

func newRecordStore(cfg config.StorageConfig) (dispatch.RecordStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return store.NewSQLiteRecordStore(cfg.Path)
	default:
		return dispatch.NewMemoryRecordStore(), nil
	}
}

func newRegistry(cfg config.RosterConfig) (registry.Registry, error) {
	if cfg.Path == "" {
		return registry.NewMemoryRegistry()
	}
	return registry.LoadRoster(cfg.Path)
}

func newNotifier(cfg config.NotifierConfig) (notify.Notifier, error) {
	if cfg.Backend == "mqtt" {
		return infranotify.NewMQTTNotifier(cfg.MQTT)
	}
	return infranotify.NewLogNotifier(), nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	// Catch up records whose deadlines passed while the service was down,
	// then keep sweeping as a backstop for the per-record timers.
	if err := s.Manager.SweepExpired(ctx); err != nil {
		s.log.Errorf("startup sweep: %v", err)
	}
	s.cron = cron.New()
	spec := fmt.Sprintf("@every %ds", s.cfg.Dispatch.Expiry.SweepSeconds)
	if _, err := s.cron.AddFunc(spec, func() {
		if err := s.Manager.SweepExpired(context.Background()); err != nil {
			s.log.Errorf("expiry sweep: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("expiry sweep schedule: %w", err)
	}
	s.cron.Start()

	if s.cfg.Metrics.Prometheus.Enabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.Prometheus.Addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	apidispatch.NewHandler(s.Manager, logger.New("api")).Register(mux)
	s.hub.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("dispatch API listening on %s", s.cfg.API.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.hub.Close()
	s.bus.Close()
	if c, ok := s.notifier.(interface{ Close() }); ok {
		c.Close()
	}
	return s.Manager.Close()
}
