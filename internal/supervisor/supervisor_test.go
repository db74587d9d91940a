package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidfantasy/process-compose/internal/config"
	"github.com/davidfantasy/process-compose/internal/event"
	"github.com/davidfantasy/process-compose/internal/health"
	"github.com/davidfantasy/process-compose/internal/metrics"
	"github.com/davidfantasy/process-compose/internal/platform"
	"github.com/davidfantasy/process-compose/internal/process"
	"github.com/davidfantasy/process-compose/internal/registry"
)

type recordingNotifier struct {
	mu     sync.Mutex
	status map[string]bool
}

func (n *recordingNotifier) SetServing(service string, serving bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.status == nil {
		n.status = make(map[string]bool)
	}
	n.status[service] = serving
}

func (n *recordingNotifier) serving(service string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status[service]
}

func processCheck() *config.HealthCheckConfig {
	return &config.HealthCheckConfig{
		TestType:    config.CheckProcess,
		Interval:    5,
		MaxFailures: 1,
	}
}

func buildSupervisor(t *testing.T, services map[string]*config.ServiceConfig, order []string) (*Supervisor, *registry.Registry) {
	t.Helper()
	cfg := &config.GlobalConfig{AppDataHome: t.TempDir(), Services: services}
	adapter := platform.New(false)
	bus := event.NewBus()
	reg, err := registry.New(cfg, order, adapter, bus, zap.NewNop())
	require.NoError(t, err)
	pending := process.NewPendingQueue()
	mgr := process.NewManager(cfg, t.TempDir(), reg, adapter, pending, bus, zap.NewNop())
	watcher := health.NewWatcher(reg, bus, zap.NewNop())
	sup := New(cfg, reg, mgr, watcher, bus, nil, metrics.NewNoopRecorder(), zap.NewNop())
	return sup, reg
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestLinearChainStartsInDependencyOrder(t *testing.T) {
	services := map[string]*config.ServiceConfig{
		"a": {Name: "a", StartCmd: []string{"sleep", "60"}, HealthCheck: processCheck()},
		"b": {Name: "b", StartCmd: []string{"sleep", "60"}, DependsOn: []string{"a"}, HealthCheck: processCheck()},
		"c": {Name: "c", StartCmd: []string{"sleep", "60"}, DependsOn: []string{"b"}, HealthCheck: processCheck()},
	}
	sup, reg := buildSupervisor(t, services, []string{"a", "b", "c"})

	require.NoError(t, sup.Start(context.Background()))
	t.Cleanup(func() { _ = sup.Stop() })

	// a starts immediately; b and c follow as their predecessors turn
	// healthy via the process probe.
	eventually(t, 10*time.Second, func() bool {
		return reg.IsRunningByName("a") && reg.IsRunningByName("b") && reg.IsRunningByName("c")
	}, "chain did not come up")

	infoA, err := reg.Find("a")
	require.NoError(t, err)
	infoC, err := reg.Find("c")
	require.NoError(t, err)
	assert.False(t, infoA.LastStartTime.After(infoC.LastStartTime),
		"a must not start after its transitive dependent")
}

func TestOrderlyShutdown(t *testing.T) {
	services := map[string]*config.ServiceConfig{
		"a": {Name: "a", StartCmd: []string{"sleep", "60"}, HealthCheck: processCheck()},
		"b": {Name: "b", StartCmd: []string{"sleep", "60"}, HealthCheck: processCheck()},
	}
	sup, reg := buildSupervisor(t, services, []string{"a", "b"})

	require.NoError(t, sup.Start(context.Background()))
	eventually(t, 10*time.Second, func() bool {
		return reg.IsRunningByName("a") && reg.IsRunningByName("b")
	}, "services did not come up")

	require.NoError(t, sup.Stop())

	for _, name := range []string{"a", "b"} {
		info, err := reg.Find(name)
		require.NoError(t, err)
		assert.Zero(t, info.PID, "%s still has a pid", name)
		assert.True(t, info.StoppedBySupervisor)
	}
	assert.False(t, sup.watcher.IsWatching("a"))
	assert.False(t, sup.watcher.IsWatching("b"))
}

func TestStartTwiceFails(t *testing.T) {
	services := map[string]*config.ServiceConfig{
		"a": {Name: "a", StartCmd: []string{"sleep", "60"}},
	}
	sup, _ := buildSupervisor(t, services, []string{"a"})

	require.NoError(t, sup.Start(context.Background()))
	t.Cleanup(func() { _ = sup.Stop() })
	assert.Error(t, sup.Start(context.Background()))
}

func TestHandleHealthyUpdatesRegistryAndNotifier(t *testing.T) {
	services := map[string]*config.ServiceConfig{
		"a": {Name: "a", StartCmd: []string{"sleep", "60"}},
	}
	sup, reg := buildSupervisor(t, services, []string{"a"})
	notifier := &recordingNotifier{}
	sup.SetNotifier(notifier)

	sup.handleEvent(event.ProcessEvent{ServiceName: "a", Type: event.TypeHealthy})
	assert.Equal(t, registry.HealthHealthy, reg.IsHealthy("a"))
	assert.True(t, notifier.serving("a"))

	sup.handleEvent(event.ProcessEvent{ServiceName: "a", Type: event.TypeUnhealthy})
	assert.Equal(t, registry.HealthUnhealthy, reg.IsHealthy("a"))
	assert.False(t, notifier.serving("a"))
}

func TestHandleStoppedStopsWatcher(t *testing.T) {
	services := map[string]*config.ServiceConfig{
		"a": {Name: "a", StartCmd: []string{"sleep", "60"}, HealthCheck: processCheck()},
	}
	sup, _ := buildSupervisor(t, services, []string{"a"})

	sup.watcher.Start(services["a"])
	require.True(t, sup.watcher.IsWatching("a"))

	sup.handleEvent(event.ProcessEvent{ServiceName: "a", Type: event.TypeStopped})
	assert.False(t, sup.watcher.IsWatching("a"))
}
