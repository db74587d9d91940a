package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/davidfantasy/process-compose/internal/config"
	"github.com/davidfantasy/process-compose/internal/event"
)

// minCheckInterval is the lower clamp applied to configured intervals.
const minCheckInterval = 5

// Watcher runs one probing worker per watched service. The shared set
// holds only the cancellation state; each worker keeps its failure
// counter locally. A worker observes its removal from the set at the
// head of every loop iteration and exits.
type Watcher struct {
	mu       sync.Mutex
	watching map[string]struct{}

	liveness NameLiveness
	bus      *event.Bus
	log      *zap.Logger

	// sleep is replaceable in tests.
	sleep func(time.Duration)
}

// NewWatcher creates an empty watcher set.
func NewWatcher(liveness NameLiveness, bus *event.Bus, log *zap.Logger) *Watcher {
	return &Watcher{
		watching: make(map[string]struct{}),
		liveness: liveness,
		bus:      bus,
		log:      log,
		sleep:    time.Sleep,
	}
}

// Start begins watching a service. It is a no-op when the service has
// no healthcheck configured or is already being watched.
func (w *Watcher) Start(svc *config.ServiceConfig) {
	if svc.HealthCheck == nil {
		w.log.Info("service is not enabled to health check", zap.String("service", svc.Name))
		return
	}
	w.mu.Lock()
	if _, ok := w.watching[svc.Name]; ok {
		w.mu.Unlock()
		return
	}
	w.watching[svc.Name] = struct{}{}
	w.mu.Unlock()
	go w.run(svc.Name, svc.HealthCheck)
}

// Stop cancels the watcher of a service; the worker exits at its next
// loop iteration.
func (w *Watcher) Stop(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watching[name]; !ok {
		w.log.Warn("service is not being watched, ignore stop", zap.String("service", name))
		return
	}
	delete(w.watching, name)
}

// IsWatching reports whether a worker is active for the service.
func (w *Watcher) IsWatching(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watching[name]
	return ok
}

// watchState is the per-worker state; the failure counter never leaves
// the worker goroutine.
type watchState struct {
	failures int
}

func (w *Watcher) run(name string, hc *config.HealthCheckConfig) {
	if hc.StartPeriod > 0 {
		w.sleep(time.Duration(hc.StartPeriod) * time.Second)
	}
	if !w.IsWatching(name) {
		return
	}
	w.log.Info("service has enabled health checks", zap.String("service", name))
	prober := NewProber(name, hc, w.liveness)
	st := &watchState{}
	for {
		if !w.IsWatching(name) {
			w.log.Info("service is not being watched, stop health check", zap.String("service", name))
			return
		}
		w.sleep(w.observe(name, hc, prober, st))
	}
}

// observe performs one probe and returns the duration to sleep before
// the next one.
func (w *Watcher) observe(name string, hc *config.HealthCheckConfig, prober Prober, st *watchState) time.Duration {
	interval := hc.Interval
	if interval < minCheckInterval {
		interval = minCheckInterval
	}
	sleep := time.Duration(interval) * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	ok, err := prober.Probe(ctx)
	cancel()
	if err != nil {
		// Transient probe failure: the counter is left untouched.
		w.log.Warn("health check has error", zap.String("service", name), zap.Error(err))
		return sleep
	}
	if !ok {
		w.bus.Publish(event.ProcessEvent{ServiceName: name, Type: event.TypeUnhealthy})
		st.failures++
		if st.failures > hc.MaxFailures {
			w.log.Warn("health check failure count has exceeded the threshold, preparing to restart",
				zap.String("service", name), zap.Int("failures", st.failures))
			w.bus.Publish(event.ProcessEvent{ServiceName: name, Type: event.TypeRestartRequested})
			sleep += time.Duration(hc.StartPeriod) * time.Second
		}
		return sleep
	}
	w.bus.Publish(event.ProcessEvent{ServiceName: name, Type: event.TypeHealthy})
	st.failures = 0
	return sleep
}
