package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sevaops/seva/api/assignments"
	"github.com/sevaops/seva/config"
	"github.com/sevaops/seva/core/dispatch"
	"github.com/sevaops/seva/core/match"
	coremetrics "github.com/sevaops/seva/core/metrics"
	"github.com/sevaops/seva/core/notify"
	"github.com/sevaops/seva/core/reconcile"
	"github.com/sevaops/seva/core/store"
	"github.com/sevaops/seva/core/track"
	"github.com/sevaops/seva/infra/logger"
	"github.com/sevaops/seva/infra/metrics"
	infranotify "github.com/sevaops/seva/infra/notify"
	infrastore "github.com/sevaops/seva/infra/store"
	"github.com/sevaops/seva/internal/eventbus"
	jobsreconcile "github.com/sevaops/seva/jobs/reconcile"
)

// Service wires the matching engine, reconciler and observability together.
type Service struct {
	Manager    *dispatch.AssignmentManager
	Reconciler *reconcile.Reconciler
	Tracker    *track.Tracker
	Store      store.Store
	Changes    *eventbus.SubscriptionManager

	scheduler   *jobsreconcile.Scheduler
	bus         eventbus.EventBus
	log         logger.Logger
	promEnabled bool
	promPort    string
	api         config.APIConfig
	closers     []io.Closer
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	svc := &Service{
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
		api:         cfg.API,
	}

	st, err := buildStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if c, ok := st.(io.Closer); ok {
		svc.closers = append(svc.closers, c)
	}
	svc.Store = st

	notifier, err := buildNotifier(cfg.Notify)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}
	if c, ok := notifier.(io.Closer); ok {
		svc.closers = append(svc.closers, c)
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.MetricsSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	svc.bus = bus

	changes := eventbus.NewSubscriptionManager()
	if ms, ok := st.(interface{ SetChangeFeed(store.ChangeDispatcher) }); ok {
		ms.SetChangeFeed(changes)
	}
	svc.Changes = changes

	tuner := dispatch.NewQuantileTuner(cfg.Dispatch.Tuner.Window, cfg.Dispatch.Tuner.Quantile)

	finder := match.NewFinder(st, cfg.Dispatch.Finder)
	manager, err := dispatch.NewAssignmentManager(
		st,
		finder,
		match.NewScorer(),
		notifier,
		cfg.Dispatch,
		sink,
		bus,
		logg,
		tuner,
	)
	if err != nil {
		return nil, fmt.Errorf("assignment manager: %w", err)
	}
	svc.Manager = manager

	rec, err := reconcile.NewReconciler(st, sink, bus, logger.New("reconciler"))
	if err != nil {
		return nil, fmt.Errorf("reconciler: %w", err)
	}
	svc.Reconciler = rec

	if cfg.Reconcile.Enabled {
		sched, err := jobsreconcile.New(rec, cfg.Reconcile.IntervalSeconds, logger.New("reconcile-loop"))
		if err != nil {
			return nil, fmt.Errorf("reconcile scheduler: %w", err)
		}
		svc.scheduler = sched
	}

	svc.Tracker = track.NewTracker(st, cfg.Track)
	return svc, nil
}

func buildStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return infrastore.NewSQLiteStore(cfg.Path)
	case "memory", "":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %s", cfg.Backend)
	}
}

func buildNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	switch cfg.Backend {
	case "mqtt":
		return infranotify.NewMQTTNotifier(cfg.MQTT)
	case "nop", "":
		return notify.NopNotifier{}, nil
	default:
		return nil, fmt.Errorf("unknown notify backend %s", cfg.Backend)
	}
}

// Run starts the background loops and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start reconcile loop: %w", err)
		}
	}
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.api.Enabled {
		go s.serveAPI(ctx)
	}
	<-ctx.Done()
	return nil
}

func (s *Service) serveAPI(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/api/assignments", assignments.NewHandler(s.Store, s.api.Token))
	srv := &http.Server{Addr: s.api.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Errorf("api server: %v", err)
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	if s.Changes != nil {
		s.Changes.Close()
	}
	var firstErr error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
