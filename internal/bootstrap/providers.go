// Package bootstrap assembles the application with all dependencies
// wired.
package bootstrap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/davidfantasy/process-compose/internal/api"
	"github.com/davidfantasy/process-compose/internal/config"
	"github.com/davidfantasy/process-compose/internal/event"
	"github.com/davidfantasy/process-compose/internal/health"
	"github.com/davidfantasy/process-compose/internal/journal"
	"github.com/davidfantasy/process-compose/internal/logging"
	"github.com/davidfantasy/process-compose/internal/metrics"
	"github.com/davidfantasy/process-compose/internal/platform"
	"github.com/davidfantasy/process-compose/internal/process"
	"github.com/davidfantasy/process-compose/internal/registry"
	"github.com/davidfantasy/process-compose/internal/supervisor"
	"github.com/davidfantasy/process-compose/internal/sysservice"
)

// ConfigPath is the location of the YAML configuration file.
type ConfigPath string

// RunAsService marks a process launched by the OS service dispatcher.
type RunAsService bool

// RootDir is the directory of the running executable.
type RootDir string

// LoadConfig reads and validates the configuration file.
func LoadConfig(path ConfigPath) (*config.GlobalConfig, error) {
	return config.Load(string(path))
}

// ProvideRootDir resolves the executable's directory.
func ProvideRootDir() RootDir {
	return RootDir(config.RootDir())
}

// ProvideLogger builds the root logger with the configured level
// applied.
func ProvideLogger(rootDir RootDir, cfg *config.GlobalConfig) *zap.Logger {
	log, level := logging.New(string(rootDir))
	logging.ApplyLevel(level, cfg.LogLevel)
	return log
}

// ProvidePlatform selects the OS-specific process adapter.
func ProvidePlatform(runAsService RunAsService) platform.Adapter {
	return platform.New(bool(runAsService))
}

// ProvideBus creates the process event bus.
func ProvideBus() *event.Bus {
	return event.NewBus()
}

// ProvideStartOrder linearises the configured services into a start
// order. Service names are sorted first so the order is deterministic
// regardless of YAML map iteration.
func ProvideStartOrder(cfg *config.GlobalConfig) ([]string, error) {
	names := cfg.ServiceNames()
	sort.Strings(names)
	services := make([]*config.ServiceConfig, 0, len(names))
	for _, name := range names {
		services = append(services, cfg.Services[name])
	}
	return config.AnalyzeDependencies(services)
}

// ProvideRegistry initialises the runtime table in start order.
func ProvideRegistry(cfg *config.GlobalConfig, order []string, adapter platform.Adapter, bus *event.Bus, log *zap.Logger) (*registry.Registry, error) {
	return registry.New(cfg, order, adapter, bus, log)
}

// ProvidePendingQueue creates the pending-start queue.
func ProvidePendingQueue() *process.PendingQueue {
	return process.NewPendingQueue()
}

// ProvideManager creates the process manager.
func ProvideManager(cfg *config.GlobalConfig, rootDir RootDir, reg *registry.Registry, adapter platform.Adapter, pending *process.PendingQueue, bus *event.Bus, log *zap.Logger) *process.Manager {
	return process.NewManager(cfg, string(rootDir), reg, adapter, pending, bus, log)
}

// ProvideWatcher creates the health watcher set.
func ProvideWatcher(reg *registry.Registry, bus *event.Bus, log *zap.Logger) *health.Watcher {
	return health.NewWatcher(reg, bus, log)
}

// ProvideJournal opens the event journal. An unopenable journal is
// logged and the supervisor runs without one.
func ProvideJournal(cfg *config.GlobalConfig, log *zap.Logger) *journal.Journal {
	jrnl, err := journal.Open(cfg.JournalPath())
	if err != nil {
		log.Warn("event journal unavailable", zap.Error(err))
		return nil
	}
	return jrnl
}

// Metrics bundles the recorder with its exposition source.
type Metrics struct {
	Recorder metrics.Recorder
	Prom     *metrics.PrometheusRecorder
}

// ProvideMetrics builds Prometheus collectors when the API is enabled
// and a no-op recorder otherwise.
func ProvideMetrics(cfg *config.GlobalConfig) *Metrics {
	if cfg.API == nil || !cfg.API.Enable {
		return &Metrics{Recorder: metrics.NewNoopRecorder()}
	}
	prom := metrics.NewPrometheusRecorder()
	return &Metrics{Recorder: prom, Prom: prom}
}

// ProvideAPIServer builds the API server, or nil when disabled.
func ProvideAPIServer(cfg *config.GlobalConfig, reg *registry.Registry, mgr *process.Manager, jrnl *journal.Journal, m *Metrics, log *zap.Logger) *api.Server {
	if cfg.API == nil || !cfg.API.Enable {
		return nil
	}
	if m.Prom == nil {
		return api.NewServer(cfg.API, reg, mgr, jrnl, nil, log)
	}
	return api.NewServer(cfg.API, reg, mgr, jrnl, m.Prom.Registry(), log)
}

// ProvideSupervisor assembles the supervisor runtime.
func ProvideSupervisor(cfg *config.GlobalConfig, reg *registry.Registry, mgr *process.Manager, watcher *health.Watcher, bus *event.Bus, jrnl *journal.Journal, m *Metrics, log *zap.Logger) *supervisor.Supervisor {
	return supervisor.New(cfg, reg, mgr, watcher, bus, jrnl, m.Recorder, log)
}

// ProvideSysService creates the OS-service manager.
func ProvideSysService(cfg *config.GlobalConfig, log *zap.Logger) *sysservice.Manager {
	return sysservice.NewManager(cfg, log)
}
