package service

import (
	"context"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"lead-response-engine/pkg/analytics"
	"lead-response-engine/pkg/config"
	"lead-response-engine/pkg/directory"
	"lead-response-engine/pkg/escalation"
	"lead-response-engine/pkg/events"
	"lead-response-engine/pkg/handlers"
	"lead-response-engine/pkg/leader"
	"lead-response-engine/pkg/metrics"
	"lead-response-engine/pkg/notify"
	"lead-response-engine/pkg/routing"
	"lead-response-engine/pkg/server"
)

// Service assembles the engine and its supporting pieces from configuration.
// With the redis backend it also runs leader election, the missed-deadline
// sweeper, and the event stream; the memory backend is a single pod and
// needs none of those.
type Service struct {
	config    *config.Config
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	directory *directory.Directory
	engine    *escalation.Engine
	analytics *analytics.Store
	bus       *events.Bus

	election *leader.Election
	sweeper  *escalation.Sweeper
	consumer *events.StreamConsumer
	server   *http.Server
}

// NewService wires the full dependency graph. sender is the outbound
// notification transport; rdb may be nil when the store backend is memory.
func NewService(rdb *redis.Client, sender notify.ChannelSender, cfg *config.Config, logger *logrus.Logger, m *metrics.Metrics) *Service {
	dir := directory.New(logger)
	router := routing.New(dir, logger)
	fanout := notify.NewFanout(sender, cfg.NotificationChannels(), logger, m)
	analyticsStore := analytics.NewStore(logger, m)
	bus := events.NewBus(logger)

	var publisher events.Publisher = bus
	var store escalation.CaseStore = escalation.NewMemoryStore()

	s := &Service{
		config:    cfg,
		logger:    logger,
		metrics:   m,
		directory: dir,
		analytics: analyticsStore,
		bus:       bus,
	}

	if cfg.StoreBackend == "redis" {
		store = escalation.NewRedisStore(rdb, logger, m)
		publisher = events.Multi{bus, events.NewStreamPublisher(rdb, logger)}
		s.election = leader.NewElection(rdb, cfg.PodID, cfg.LeaderTTL(), cfg.LeaderInterval(), logger, m)
		s.consumer = events.NewStreamConsumer(rdb, cfg.ConsumerGroup, cfg.PodID, logEvent(logger), logger)
	}

	s.engine = escalation.NewEngine(cfg.EscalationChain(), router, fanout, store, analyticsStore, publisher, escalation.NewClock(), logger, m)

	if cfg.StoreBackend == "redis" {
		s.sweeper = escalation.NewSweeper(s.engine, s.IsLeader, cfg.SweepInterval(), logger, m)
	}

	return s
}

func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting lead response engine")

	if s.election != nil {
		s.election.Start(ctx)
	}
	if s.sweeper != nil {
		s.sweeper.Start(ctx)
	}
	if s.consumer != nil {
		if err := s.consumer.Start(ctx); err != nil {
			return err
		}
	}

	handler := handlers.NewHandler(s.engine, s.directory, s.analytics, s.logger, s.IsLeader)
	s.server = server.NewHTTPServer(s.config.Port, handler, s.logger)

	go func() {
		s.logger.WithField("port", s.config.Port).Info("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	s.logger.WithFields(logrus.Fields{
		"pod_id":  s.config.PodID,
		"backend": s.config.StoreBackend,
	}).Info("Lead response engine started")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("Stopping lead response engine")

	if s.consumer != nil {
		s.consumer.Stop()
	}
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.election != nil {
		s.election.Stop()
	}

	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Error("Failed to shutdown HTTP server gracefully")
			return err
		}
	}

	s.logger.Info("Lead response engine stopped")
	return nil
}

// IsLeader reports whether this pod runs singleton work. Memory-backed
// deployments are single pod and always lead.
func (s *Service) IsLeader() bool {
	if s.election == nil {
		return true
	}
	return s.election.IsLeader()
}

func (s *Service) Engine() *escalation.Engine {
	return s.engine
}

func (s *Service) Directory() *directory.Directory {
	return s.directory
}

// Bus exposes the in-process event bus so embedding applications can
// subscribe without going through Redis.
func (s *Service) Bus() *events.Bus {
	return s.bus
}

// logEvent is the stream consumer handler for the standalone binary. The
// exhausted case is the one that demands human attention.
func logEvent(logger *logrus.Logger) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		entry := logger.WithFields(logrus.Fields{
			"type":    event.Type,
			"case_id": event.CaseID,
			"lead_id": event.LeadID,
			"tier":    event.Tier,
		})
		if event.Type == events.LeadExhausted {
			entry.Warn("Lead requires manual follow-up")
		} else {
			entry.Debug("Consumed domain event")
		}
		return nil
	}
}
