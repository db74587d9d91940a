// Package process starts, stops and restarts supervised children and
// owns the spawn-and-wait workers.
package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davidfantasy/process-compose/internal/config"
	"github.com/davidfantasy/process-compose/internal/event"
	"github.com/davidfantasy/process-compose/internal/logging"
	"github.com/davidfantasy/process-compose/internal/platform"
	"github.com/davidfantasy/process-compose/internal/registry"
)

const (
	// stopTimeout is how long a child gets to exit after Terminate
	// before it is forcibly killed.
	stopTimeout = 2 * time.Second
	// stopPollInterval is the liveness polling cadence during a stop.
	stopPollInterval = 200 * time.Millisecond
)

// Manager is the public start/stop/restart surface.
type Manager struct {
	cfg      *config.GlobalConfig
	rootDir  string
	reg      *registry.Registry
	platform platform.Adapter
	pending  *PendingQueue
	bus      *event.Bus
	log      *zap.Logger
}

// NewManager creates a process manager. rootDir anchors relative
// start commands ("./x" resolves under <rootDir>/<service>/).
func NewManager(cfg *config.GlobalConfig, rootDir string, reg *registry.Registry, adapter platform.Adapter, pending *PendingQueue, bus *event.Bus, log *zap.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		rootDir:  rootDir,
		reg:      reg,
		platform: adapter,
		pending:  pending,
		bus:      bus,
		log:      log,
	}
}

// StartServices starts every named service whose dependencies are
// healthy and parks the rest in the pending queue.
func (m *Manager) StartServices(names []string) error {
	for _, name := range names {
		info, err := m.reg.Find(name)
		if err != nil {
			m.log.Warn("starting service not found", zap.String("service", name))
			continue
		}
		if m.reg.CheckDepOK(name) {
			if err := m.StartService(name); err != nil {
				return err
			}
			continue
		}
		m.log.Info("service has dependencies, add to pending list", zap.String("service", name))
		m.pending.Add(name, info.Config.DependsOn)
	}
	return nil
}

// StartService starts one service. A start while the recorded child is
// still alive only re-emits Running; no second child is spawned.
func (m *Manager) StartService(name string) error {
	info, err := m.reg.Find(name)
	if err != nil {
		return err
	}
	if info.PID != 0 && m.reg.IsRunningByPID(info.PID) {
		m.log.Info("service is already running",
			zap.String("service", name), zap.Int("pid", info.PID))
		m.bus.Publish(event.ProcessEvent{ServiceName: name, PID: info.PID, Type: event.TypeRunning})
		return nil
	}
	go m.spawnAndWait(info.Config)
	return nil
}

// StopServices stops the named services sequentially.
func (m *Manager) StopServices(names []string) error {
	for _, name := range names {
		if err := m.StopService(name); err != nil {
			return err
		}
	}
	return nil
}

// StopService performs a graceful-then-forced stop: Terminate, poll
// liveness for up to two seconds, then Kill.
func (m *Manager) StopService(name string) error {
	info, err := m.reg.Find(name)
	if err != nil {
		return err
	}
	if err := m.reg.Update(name, func(rec *registry.ProcessRuntimeInfo) {
		rec.StoppedBySupervisor = true
	}); err != nil {
		return err
	}
	if info.PID == 0 {
		m.log.Info("service is not running", zap.String("service", name))
		return nil
	}
	if !m.reg.IsRunningByPID(info.PID) {
		m.log.Info("ignore stop command, service is not running",
			zap.String("service", name), zap.Int("pid", info.PID))
		return nil
	}
	m.log.Info("service is stopping", zap.String("service", name), zap.Int("pid", info.PID))
	if err := m.platform.Terminate(info.PID); err != nil {
		m.log.Warn("terminate signal failed",
			zap.String("service", name), zap.Int("pid", info.PID), zap.Error(err))
	}
	deadline := time.Now().Add(stopTimeout)
	alive := true
	for alive && time.Now().Before(deadline) {
		time.Sleep(stopPollInterval)
		alive = m.reg.IsRunningByPID(info.PID)
	}
	if alive {
		m.log.Info("service did not exit in time after the interrupt signal, killing it",
			zap.String("service", name), zap.Int("pid", info.PID))
		if err := m.platform.Kill(info.PID); err != nil {
			return fmt.Errorf("kill service %s (pid %d): %w", name, info.PID, err)
		}
	}
	if !info.IsChildProcess {
		// An adopted process has no spawn worker to record its end.
		if err := m.reg.UpdateToStopped(name, "terminated by supervisor", info.PID); err != nil {
			m.log.Error("record adopted service stop", zap.String("service", name), zap.Error(err))
		}
	}
	return nil
}

// RestartService stops the service if it is running, then starts it.
func (m *Manager) RestartService(name string) error {
	if m.reg.IsRunningByName(name) {
		if err := m.StopService(name); err != nil {
			return err
		}
	}
	return m.StartService(name)
}

// StartPendingSatisfied starts every pending service whose dependency
// snapshot is now fully healthy, removing it from the queue.
func (m *Manager) StartPendingSatisfied() {
	taken := m.pending.TakeSatisfied(func(p PendingService) bool {
		for _, dep := range p.Depends {
			if m.reg.IsHealthy(dep) != registry.HealthHealthy {
				return false
			}
		}
		return true
	})
	for _, p := range taken {
		m.log.Info("startup dependency conditions have been met", zap.String("service", p.Name))
		if err := m.StartService(p.Name); err != nil {
			m.log.Error("start pending service failed", zap.String("service", p.Name), zap.Error(err))
		}
	}
}

// spawnAndWait is the per-child worker: it spawns the process, records
// the start, then blocks on the child's exit and records the outcome.
// It is the only goroutine that ever waits on that child.
func (m *Manager) spawnAndWait(svc *config.ServiceConfig) {
	name := svc.Name
	cmd, logFiles, err := m.buildCommand(svc)
	if err == nil {
		m.platform.PreExec(cmd)
		m.log.Debug("execute service start command",
			zap.String("service", name), zap.Strings("cmd", svc.StartCmd))
		err = cmd.Start()
	}
	if err != nil {
		closeAll(logFiles)
		m.log.Error("service spawn failed", zap.String("service", name), zap.Error(err))
		// A failed spawn is a spontaneous death, not a deliberate stop.
		_ = m.reg.Update(name, func(rec *registry.ProcessRuntimeInfo) {
			rec.StoppedBySupervisor = false
		})
		if err := m.reg.UpdateToStopped(name, fmt.Sprintf("spawn process error: %v", err), 0); err != nil {
			m.log.Error("record spawn failure", zap.String("service", name), zap.Error(err))
		}
		return
	}
	pid := cmd.Process.Pid
	if err := m.reg.UpdateToStarted(name, pid, true); err != nil {
		m.log.Error("record service start", zap.String("service", name), zap.Error(err))
	}
	waitErr := cmd.Wait()
	closeAll(logFiles)
	exitMsg := exitDescription(waitErr)
	if err := m.reg.UpdateToStopped(name, exitMsg, pid); err != nil {
		m.log.Error("record service stop", zap.String("service", name), zap.Error(err))
	}
}

// buildCommand resolves the program path and wires stdio redirection.
// A command starting with "./" resolves under <rootDir>/<service>/;
// the working directory is set only for absolute programs so globally
// installed tools keep resolving their own relative paths.
func (m *Manager) buildCommand(svc *config.ServiceConfig) (*exec.Cmd, []*os.File, error) {
	program := svc.StartCmd[0]
	serviceDir := filepath.Join(m.rootDir, svc.Name)
	if strings.HasPrefix(program, "./") {
		program = filepath.Join(serviceDir, program[2:])
	}
	cmd := exec.Command(program, svc.StartCmd[1:]...)
	if filepath.IsAbs(program) {
		cmd.Dir = serviceDir
	}

	var logFiles []*os.File
	logDir := m.cfg.ServiceLogDir(svc.Name)
	if svc.LogRedirect {
		out, err := logging.OpenRedirectLogFile(logDir, "out")
		if err != nil {
			return nil, nil, fmt.Errorf("open redirect log for %s: %w", svc.Name, err)
		}
		logFiles = append(logFiles, out)
		cmd.Stdout = out
		cmd.Stderr = out
	} else {
		errFile, err := logging.OpenRedirectLogFile(logDir, "err")
		if err != nil {
			return nil, nil, fmt.Errorf("open error log for %s: %w", svc.Name, err)
		}
		logFiles = append(logFiles, errFile)
		cmd.Stdout = nil
		cmd.Stderr = errFile
	}
	return cmd, logFiles, nil
}

func closeAll(files []*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// exitDescription renders the child's exit the way it is stored and
// reported: "exit code: N", or the wait error itself.
func exitDescription(waitErr error) string {
	if waitErr == nil {
		return "exit code: 0"
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return fmt.Sprintf("exit code: %d", exitErr.ExitCode())
	}
	return waitErr.Error()
}
