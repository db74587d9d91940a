// Package sysservice installs and runs the supervisor as a native OS
// service (Windows SCM, systemd, launchd) through the platform service
// manager.
package sysservice

import (
	"fmt"

	"github.com/kardianos/service"
	"go.uber.org/zap"

	"github.com/davidfantasy/process-compose/internal/config"
)

// RunAsServiceFlag is the internal flag the installed unit passes back
// to the executable so it enters the dispatcher instead of the
// foreground signal loop.
const RunAsServiceFlag = "run-as-service"

// Manager drives install/uninstall/start/stop and the service run loop.
type Manager struct {
	cfg *config.GlobalConfig
	log *zap.Logger
}

// NewManager creates a service manager for the loaded configuration.
func NewManager(cfg *config.GlobalConfig, log *zap.Logger) *Manager {
	return &Manager{cfg: cfg, log: log}
}

// serviceConfig builds the platform service definition: the current
// executable re-run with the internal dispatcher flag.
func (m *Manager) serviceConfig() *service.Config {
	return &service.Config{
		Name:        m.cfg.SysServiceName,
		DisplayName: m.cfg.SysServiceName,
		Description: m.cfg.SysServiceDesc,
		Arguments:   []string{"--" + RunAsServiceFlag},
	}
}

// program adapts the supervisor lifecycle to the service dispatcher.
type program struct {
	start func() error
	stop  func() error
	log   *zap.Logger
}

// Start implements service.Interface; it must not block.
func (p *program) Start(service.Service) error {
	return p.start()
}

// Stop implements service.Interface.
func (p *program) Stop(service.Service) error {
	p.log.Info("service manager requested stop, stopping all services")
	return p.stop()
}

// Control performs a service action: install, uninstall, start, stop.
func (m *Manager) Control(action string) error {
	svc, err := service.New(&program{
		start: func() error { return nil },
		stop:  func() error { return nil },
		log:   m.log,
	}, m.serviceConfig())
	if err != nil {
		return fmt.Errorf("detect service platform: %w", err)
	}
	if err := service.Control(svc, action); err != nil {
		return fmt.Errorf("service action %s: %w", action, err)
	}
	return nil
}

// Run enters the OS-service dispatcher: start launches the supervisor
// (without blocking), stop shuts every supervised service down. Run
// returns when the service manager stops the service.
func (m *Manager) Run(start, stop func() error) error {
	svc, err := service.New(&program{start: start, stop: stop, log: m.log}, m.serviceConfig())
	if err != nil {
		return fmt.Errorf("detect service platform: %w", err)
	}
	return svc.Run()
}

// IsValidAction reports whether a CLI service_action is recognised.
func IsValidAction(action string) bool {
	switch action {
	case "install", "uninstall", "start", "stop":
		return true
	}
	return false
}
