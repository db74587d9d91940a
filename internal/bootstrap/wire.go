//go:build wireinject

package bootstrap

import (
	"github.com/google/wire"
)

// InitializeApp creates the application with all dependencies wired.
// This function is the injector that Wire will generate code for.
func InitializeApp(configPath ConfigPath, runAsService RunAsService) (*App, error) {
	wire.Build(
		LoadConfig,
		ProvideRootDir,
		ProvideLogger,
		ProvidePlatform,
		ProvideBus,
		ProvideStartOrder,
		ProvideRegistry,
		ProvidePendingQueue,
		ProvideManager,
		ProvideWatcher,
		ProvideJournal,
		ProvideMetrics,
		ProvideAPIServer,
		ProvideSupervisor,
		ProvideSysService,
		NewApp,
	)
	return nil, nil
}
