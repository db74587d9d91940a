// Package registry owns the per-service runtime records and is the
// only component allowed to mutate them.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/davidfantasy/process-compose/internal/config"
	"github.com/davidfantasy/process-compose/internal/event"
)

// Health is the tri-state health of a service.
type Health int

const (
	HealthUnknown Health = iota
	HealthHealthy
	HealthUnhealthy
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// ProcessRuntimeInfo is the mutable runtime record of one service.
// PID zero means the registry believes no child is alive.
type ProcessRuntimeInfo struct {
	Name                string
	PID                 int
	IsChildProcess      bool
	Health              Health
	Config              *config.ServiceConfig
	StoppedBySupervisor bool
	LastStartTime       time.Time
	LastStopTime        time.Time
	ExitErr             string
}

// Liveness probes whether the OS reports a PID as live.
type Liveness interface {
	IsAlive(pid int) bool
}

// ErrUnknownService is returned for names absent from the table.
var ErrUnknownService = errors.New("unknown service")

// Registry is the process-wide table of runtime records. Reads return
// snapshots; all mutations go through Update under an exclusive guard.
type Registry struct {
	mu       sync.RWMutex
	records  map[string]*ProcessRuntimeInfo
	order    []string
	cfg      *config.GlobalConfig
	liveness Liveness
	bus      *event.Bus
	log      *zap.Logger
}

// New populates the table in the given start order, adopting services
// whose PID file still points at a live process. It fails if order
// names a service absent from the configuration.
func New(cfg *config.GlobalConfig, order []string, liveness Liveness, bus *event.Bus, log *zap.Logger) (*Registry, error) {
	r := &Registry{
		records:  make(map[string]*ProcessRuntimeInfo, len(order)),
		order:    append([]string(nil), order...),
		cfg:      cfg,
		liveness: liveness,
		bus:      bus,
		log:      log,
	}
	for _, name := range order {
		svc := cfg.FindService(name)
		if svc == nil {
			return nil, fmt.Errorf("service %s was not found in the configuration: %w", name, ErrUnknownService)
		}
		rec := &ProcessRuntimeInfo{
			Name:           name,
			Config:         svc,
			IsChildProcess: true,
		}
		if pid, err := ReadPIDFile(cfg.PIDFilePath(name)); err == nil && liveness.IsAlive(pid) {
			// Adopt the still-running child from a previous supervisor run.
			rec.PID = pid
			rec.IsChildProcess = false
			rec.LastStartTime = time.Now()
			log.Info("adopted running service from pid file",
				zap.String("service", name), zap.Int("pid", pid))
		}
		r.records[name] = rec
	}
	return r, nil
}

// Find returns a snapshot of a service's runtime record.
func (r *Registry) Find(name string) (ProcessRuntimeInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	if !ok {
		return ProcessRuntimeInfo{}, fmt.Errorf("can not find process runtime for service %s: %w", name, ErrUnknownService)
	}
	return *rec, nil
}

// Update applies mutator atomically. Readers observe either the pre-
// or post-state, never a tear.
func (r *Registry) Update(name string, mutator func(*ProcessRuntimeInfo)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[name]
	if !ok {
		return fmt.Errorf("can not find process runtime for service %s: %w", name, ErrUnknownService)
	}
	mutator(rec)
	return nil
}

// IsRunningByName reports whether the registry holds a PID for the
// service and the OS confirms it live.
func (r *Registry) IsRunningByName(name string) bool {
	info, err := r.Find(name)
	if err != nil || info.PID == 0 {
		return false
	}
	return r.liveness.IsAlive(info.PID)
}

// IsRunningByPID probes an arbitrary PID.
func (r *Registry) IsRunningByPID(pid int) bool {
	return r.liveness.IsAlive(pid)
}

// ChangeHealth sets a service's health, logging only on transition.
func (r *Registry) ChangeHealth(name string, healthy bool) error {
	target := HealthUnhealthy
	if healthy {
		target = HealthHealthy
	}
	return r.Update(name, func(rec *ProcessRuntimeInfo) {
		if rec.Health != target {
			r.log.Info("service health changed",
				zap.String("service", name), zap.Bool("healthy", healthy))
		}
		rec.Health = target
	})
}

// IsHealthy returns the tri-state health of a service.
func (r *Registry) IsHealthy(name string) Health {
	info, err := r.Find(name)
	if err != nil {
		return HealthUnknown
	}
	return info.Health
}

// CheckDepOK reports whether every declared dependency of the service
// is currently healthy.
func (r *Registry) CheckDepOK(name string) bool {
	info, err := r.Find(name)
	if err != nil {
		return false
	}
	for _, dep := range info.Config.DependsOn {
		if r.IsHealthy(dep) != HealthHealthy {
			return false
		}
	}
	return true
}

// AllNames returns every service name in declared start order.
func (r *Registry) AllNames() []string {
	return append([]string(nil), r.order...)
}

// UpdateToStarted records a successful start: PID, start time, cleared
// stop flag. The PID file is written before the Running event is
// emitted; a PID file failure is logged but non-fatal.
func (r *Registry) UpdateToStarted(name string, pid int, isChild bool) error {
	err := r.Update(name, func(rec *ProcessRuntimeInfo) {
		rec.PID = pid
		rec.IsChildProcess = isChild
		rec.LastStartTime = time.Now()
		rec.StoppedBySupervisor = false
	})
	if err != nil {
		return err
	}
	if err := WritePIDFile(r.cfg.PIDFilePath(name), pid); err != nil {
		r.log.Error("create pid file failed", zap.String("service", name), zap.Error(err))
	}
	r.bus.Publish(event.ProcessEvent{ServiceName: name, PID: pid, Type: event.TypeRunning})
	return nil
}

// UpdateToStopped records an ended child: PID cleared, stop time and
// exit description set. The PID file is removed before the event is
// emitted; the event is Stopped when the stop was deliberate and
// Exited otherwise.
func (r *Registry) UpdateToStopped(name, exitMsg string, pid int) error {
	var deliberate bool
	err := r.Update(name, func(rec *ProcessRuntimeInfo) {
		rec.PID = 0
		rec.LastStopTime = time.Now()
		rec.ExitErr = exitMsg
		deliberate = rec.StoppedBySupervisor
	})
	if err != nil {
		return err
	}
	if err := RemovePIDFile(r.cfg.PIDFilePath(name)); err != nil {
		r.log.Warn("remove pid file failed", zap.String("service", name), zap.Error(err))
	}
	typ := event.TypeExited
	if deliberate {
		typ = event.TypeStopped
	}
	r.bus.Publish(event.ProcessEvent{ServiceName: name, PID: pid, Type: typ, Data: exitMsg})
	return nil
}
