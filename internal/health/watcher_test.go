package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidfantasy/process-compose/internal/config"
	"github.com/davidfantasy/process-compose/internal/event"
)

type scriptedProber struct {
	results []bool
	errs    []error
	calls   int
}

func (p *scriptedProber) Probe(context.Context) (bool, error) {
	i := p.calls
	p.calls++
	var err error
	if i < len(p.errs) {
		err = p.errs[i]
	}
	ok := false
	if i < len(p.results) {
		ok = p.results[i]
	}
	return ok, err
}

func newTestWatcher() (*Watcher, *event.Bus) {
	bus := event.NewBus()
	w := NewWatcher(&fakeNameLiveness{}, bus, zap.NewNop())
	w.sleep = func(time.Duration) {}
	return w, bus
}

func drain(t *testing.T, bus *event.Bus) event.ProcessEvent {
	t.Helper()
	select {
	case e := <-bus.Events():
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("expected an event")
		return event.ProcessEvent{}
	}
}

func TestStartWithoutHealthCheckIsNoop(t *testing.T) {
	w, _ := newTestWatcher()
	w.Start(&config.ServiceConfig{Name: "svc"})
	assert.False(t, w.IsWatching("svc"))
}

func TestStartAndStop(t *testing.T) {
	w, _ := newTestWatcher()
	hc := &config.HealthCheckConfig{TestType: config.CheckProcess, Interval: 5, MaxFailures: 1}
	w.Start(&config.ServiceConfig{Name: "svc", HealthCheck: hc})
	assert.True(t, w.IsWatching("svc"))

	w.Stop("svc")
	assert.False(t, w.IsWatching("svc"))

	// Stopping again is a logged no-op.
	w.Stop("svc")
}

func TestObserveHealthy(t *testing.T) {
	w, bus := newTestWatcher()
	hc := &config.HealthCheckConfig{Interval: 10, MaxFailures: 1}
	st := &watchState{failures: 2}

	sleep := w.observe("svc", hc, &scriptedProber{results: []bool{true}}, st)

	evt := drain(t, bus)
	assert.Equal(t, event.TypeHealthy, evt.Type)
	assert.Equal(t, "svc", evt.ServiceName)
	assert.Zero(t, st.failures, "success resets the counter")
	assert.Equal(t, 10*time.Second, sleep)
}

func TestObserveUnhealthyBelowThreshold(t *testing.T) {
	w, bus := newTestWatcher()
	hc := &config.HealthCheckConfig{Interval: 5, MaxFailures: 1, StartPeriod: 3}
	st := &watchState{}

	sleep := w.observe("svc", hc, &scriptedProber{results: []bool{false}}, st)

	evt := drain(t, bus)
	assert.Equal(t, event.TypeUnhealthy, evt.Type)
	assert.Equal(t, 1, st.failures)
	assert.Equal(t, 5*time.Second, sleep, "no restart yet, no start_period added")
}

func TestObserveUnhealthyTriggersRestart(t *testing.T) {
	w, bus := newTestWatcher()
	hc := &config.HealthCheckConfig{Interval: 5, MaxFailures: 1, StartPeriod: 3}
	st := &watchState{failures: 1}

	sleep := w.observe("svc", hc, &scriptedProber{results: []bool{false}}, st)

	assert.Equal(t, event.TypeUnhealthy, drain(t, bus).Type)
	assert.Equal(t, event.TypeRestartRequested, drain(t, bus).Type)
	assert.Equal(t, 2, st.failures)
	assert.Equal(t, 8*time.Second, sleep, "start_period added after a restart request")
}

func TestObserveProbeErrorDoesNotCount(t *testing.T) {
	w, bus := newTestWatcher()
	hc := &config.HealthCheckConfig{Interval: 7, MaxFailures: 1}
	st := &watchState{failures: 1}

	sleep := w.observe("svc", hc, &scriptedProber{errs: []error{errors.New("boom")}}, st)

	select {
	case e := <-bus.Events():
		t.Fatalf("no event expected on probe error, got %v", e.Type)
	default:
	}
	assert.Equal(t, 1, st.failures, "counter unchanged")
	assert.Equal(t, 7*time.Second, sleep)
}

func TestObserveClampsInterval(t *testing.T) {
	w, bus := newTestWatcher()
	hc := &config.HealthCheckConfig{Interval: 1, MaxFailures: 1}

	sleep := w.observe("svc", hc, &scriptedProber{results: []bool{true}}, &watchState{})
	drain(t, bus)
	assert.Equal(t, 5*time.Second, sleep)
}

func TestWorkerExitsWhenStopped(t *testing.T) {
	bus := event.NewBus()
	w := NewWatcher(&fakeNameLiveness{running: true}, bus, zap.NewNop())
	stopped := make(chan struct{})
	w.sleep = func(time.Duration) {
		select {
		case <-stopped:
		case <-time.After(time.Millisecond):
		}
	}

	hc := &config.HealthCheckConfig{TestType: config.CheckProcess, Interval: 5, MaxFailures: 1}
	w.Start(&config.ServiceConfig{Name: "svc", HealthCheck: hc})

	require.Equal(t, event.TypeHealthy, drain(t, bus).Type)

	w.Stop("svc")
	close(stopped)

	// Drain whatever was emitted before the worker observed the stop,
	// then verify the stream dries up.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-bus.Events():
		case <-time.After(200 * time.Millisecond):
			assert.False(t, w.IsWatching("svc"))
			return
		case <-deadline:
			t.Fatal("worker kept emitting after stop")
		}
	}
}
