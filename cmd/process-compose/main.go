// Package main is the entry point of process-compose, a cross-platform
// supervisor that starts, monitors and restarts a declared set of
// long-running services.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/davidfantasy/process-compose/internal/bootstrap"
	"github.com/davidfantasy/process-compose/internal/config"
	"github.com/davidfantasy/process-compose/internal/sysservice"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath   string
		runAsService bool
	)
	cmd := &cobra.Command{
		Use:     "process-compose [install|uninstall|start|stop]",
		Short:   "Process monitoring and management tool",
		Long:    "process-compose supervises a declared set of services: it starts them in dependency order, watches their health and restarts them on failure. With a service action argument it manages its own registration as a native OS service.",
		Version: version,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && !sysservice.IsValidAction(args[0]) {
				return fmt.Errorf("unknown service action %q, expected install, uninstall, start or stop", args[0])
			}
			if configPath == "" {
				configPath = config.DefaultPath()
			}
			app, err := bootstrap.InitializeApp(bootstrap.ConfigPath(configPath), bootstrap.RunAsService(runAsService))
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return runServiceAction(app, args[0])
			}
			if runAsService {
				return runAsOSService(app)
			}
			return runForeground(app)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the configuration file (default <exe_dir>/config.yaml)")
	cmd.Flags().BoolVar(&runAsService, "run-as-service", false, "internal flag, don't use it")
	_ = cmd.Flags().MarkHidden("run-as-service")
	return cmd
}

// runServiceAction drives the platform service manager.
func runServiceAction(app *bootstrap.App, action string) error {
	if err := app.SysService.Control(action); err != nil {
		return fmt.Errorf("service action %s failed: %w", action, err)
	}
	app.Log.Info(fmt.Sprintf("%s succeeded", action))
	return nil
}

// runAsOSService hands control to the OS service dispatcher. The
// dispatcher calls back into the app lifecycle and blocks until the
// service manager stops the service.
func runAsOSService(app *bootstrap.App) error {
	app.Log.Info("starting process-compose as service")
	return app.SysService.Run(
		func() error { return app.Start(context.Background()) },
		func() error { return app.Stop() },
	)
}

// runForeground starts the supervisor and blocks until SIGTERM/SIGINT.
func runForeground(app *bootstrap.App) error {
	app.Log.Info("process-compose starting")
	if err := app.Start(context.Background()); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	app.Log.Info(fmt.Sprintf("received a terminate signal (%v), try to stop all services", sig))
	return app.Stop()
}
