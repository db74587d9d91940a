// Package supervisor wires the registry, process manager, health
// watcher and event bus together and runs the event consumer.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/davidfantasy/process-compose/internal/config"
	"github.com/davidfantasy/process-compose/internal/event"
	"github.com/davidfantasy/process-compose/internal/health"
	"github.com/davidfantasy/process-compose/internal/journal"
	"github.com/davidfantasy/process-compose/internal/metrics"
	"github.com/davidfantasy/process-compose/internal/process"
	"github.com/davidfantasy/process-compose/internal/registry"
)

// StatusNotifier mirrors service status into an external health
// surface, e.g. the gRPC health endpoint.
type StatusNotifier interface {
	SetServing(service string, serving bool)
}

// Supervisor owns all shared supervision state. Independent instances
// do not leak into each other, which keeps tests hermetic.
type Supervisor struct {
	cfg      *config.GlobalConfig
	reg      *registry.Registry
	mgr      *process.Manager
	watcher  *health.Watcher
	bus      *event.Bus
	journal  *journal.Journal
	metrics  metrics.Recorder
	notifier StatusNotifier
	log      *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New assembles a supervisor. journal and notifier may be nil.
func New(cfg *config.GlobalConfig, reg *registry.Registry, mgr *process.Manager, watcher *health.Watcher, bus *event.Bus, jrnl *journal.Journal, rec metrics.Recorder, log *zap.Logger) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		reg:     reg,
		mgr:     mgr,
		watcher: watcher,
		bus:     bus,
		journal: jrnl,
		metrics: rec,
		log:     log,
	}
}

// SetNotifier attaches a status notifier before Start.
func (s *Supervisor) SetNotifier(n StatusNotifier) {
	s.notifier = n
}

// Start creates the service home directories, launches the event
// consumer and starts every configured service in dependency order.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	if err := s.cfg.CreateServicesHome(); err != nil {
		s.log.Error("create service home failed", zap.Error(err))
	}

	go s.consume(ctx)

	if err := s.mgr.StartServices(s.reg.AllNames()); err != nil {
		s.log.Error("start services failed", zap.Error(err))
	}
	return nil
}

// Stop stops every service sequentially, then shuts the consumer down.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	s.log.Info("stopping all services")
	if err := s.mgr.StopServices(s.reg.AllNames()); err != nil {
		s.log.Error("stop services failed", zap.Error(err))
	}
	// Retire the consumer goroutine before draining from this one, so
	// events are never handled from two goroutines at once.
	cancel()
	<-done
	// The spawn workers record Stopped/Exited asynchronously once their
	// children are reaped; wait for the registry to settle and consume
	// what they emitted.
	s.awaitReaped(3 * time.Second)
	s.drainBacklog()
	return nil
}

// awaitReaped waits until no service holds a PID anymore, bounded by
// timeout.
func (s *Supervisor) awaitReaped(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		settled := true
		for _, name := range s.reg.AllNames() {
			if info, err := s.reg.Find(name); err == nil && info.PID != 0 {
				settled = false
				break
			}
		}
		if settled {
			return
		}
		s.drainBacklog()
		time.Sleep(50 * time.Millisecond)
	}
}

// StopAllServices stops every service without shutting the supervisor
// down; the event consumer keeps running.
func (s *Supervisor) StopAllServices() error {
	return s.mgr.StopServices(s.reg.AllNames())
}

// drainBacklog handles every event already queued on the bus.
func (s *Supervisor) drainBacklog() {
	for {
		select {
		case e := <-s.bus.Events():
			s.handleEvent(e)
		default:
			return
		}
	}
}

// consume is the single event consumer. It must never block on a slow
// reaction; long-running reactions are offloaded to workers.
func (s *Supervisor) consume(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.bus.Events():
			s.handleEvent(e)
		}
	}
}

func (s *Supervisor) handleEvent(e event.ProcessEvent) {
	s.log.Debug("received a event",
		zap.String("service", e.ServiceName), zap.Stringer("type", e.Type))
	switch e.Type {
	case event.TypeRunning:
		s.onRunning(e)
	case event.TypeExited:
		s.onExited(e)
	case event.TypeStopped:
		s.onStopped(e)
	case event.TypeUnhealthy:
		s.onUnhealthy(e)
	case event.TypeHealthy:
		s.onHealthy(e)
	case event.TypeRestartRequested:
		s.onRestartRequested(e)
	}
}

func (s *Supervisor) onRunning(e event.ProcessEvent) {
	s.log.Info("service started",
		zap.String("service", e.ServiceName), zap.Int("pid", e.PID))
	s.record(e)
	s.metrics.ServiceStarted(e.ServiceName)
	s.metrics.ServiceUp(e.ServiceName, true)
	info, err := s.reg.Find(e.ServiceName)
	if err != nil {
		s.log.Warn("running service unknown to registry", zap.String("service", e.ServiceName))
		return
	}
	s.watcher.Start(info.Config)
}

func (s *Supervisor) onExited(e event.ProcessEvent) {
	s.log.Warn("service has exited",
		zap.String("service", e.ServiceName), zap.Int("pid", e.PID), zap.String("reason", e.Data))
	s.record(e)
	s.metrics.ServiceExited(e.ServiceName)
	s.metrics.ServiceUp(e.ServiceName, false)
	s.notifyServing(e.ServiceName, false)
	// No restart from here: the process-liveness probe will fail and
	// the health watcher drives the recovery.
}

func (s *Supervisor) onStopped(e event.ProcessEvent) {
	s.log.Info("service has been stopped, will stop health watch",
		zap.String("service", e.ServiceName), zap.Int("pid", e.PID))
	s.watcher.Stop(e.ServiceName)
	s.record(e)
	s.metrics.ServiceStopped(e.ServiceName)
	s.metrics.ServiceUp(e.ServiceName, false)
	s.notifyServing(e.ServiceName, false)
}

func (s *Supervisor) onUnhealthy(e event.ProcessEvent) {
	if err := s.reg.ChangeHealth(e.ServiceName, false); err != nil {
		s.log.Warn("change health status failed",
			zap.String("service", e.ServiceName), zap.Error(err))
	}
	s.metrics.ServiceHealthy(e.ServiceName, false)
	s.notifyServing(e.ServiceName, false)
}

func (s *Supervisor) onHealthy(e event.ProcessEvent) {
	if err := s.reg.ChangeHealth(e.ServiceName, true); err != nil {
		s.log.Warn("change health status failed",
			zap.String("service", e.ServiceName), zap.Error(err))
	}
	s.metrics.ServiceHealthy(e.ServiceName, true)
	s.notifyServing(e.ServiceName, true)
	s.mgr.StartPendingSatisfied()
}

func (s *Supervisor) onRestartRequested(e event.ProcessEvent) {
	s.record(e)
	s.metrics.RestartRequested(e.ServiceName)
	// The stop half of a restart can take the full 2 s deadline, so it
	// runs on a worker instead of the consumer.
	go func(name string) {
		if err := s.mgr.RestartService(name); err != nil {
			s.log.Warn("restart service failed", zap.String("service", name), zap.Error(err))
		}
	}(e.ServiceName)
}

func (s *Supervisor) record(e event.ProcessEvent) {
	if s.journal == nil {
		return
	}
	err := s.journal.Append(journal.Record{
		Time:    time.Now(),
		Service: e.ServiceName,
		Type:    e.Type.String(),
		PID:     e.PID,
		Data:    e.Data,
	})
	if err != nil {
		s.log.Warn("journal append failed", zap.Error(err))
	}
}

func (s *Supervisor) notifyServing(service string, serving bool) {
	if s.notifier != nil {
		s.notifier.SetServing(service, serving)
	}
}
