package bootstrap

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davidfantasy/process-compose/internal/api"
	"github.com/davidfantasy/process-compose/internal/config"
	"github.com/davidfantasy/process-compose/internal/journal"
	"github.com/davidfantasy/process-compose/internal/supervisor"
	"github.com/davidfantasy/process-compose/internal/sysservice"
)

// shutdownTimeout bounds the API server drain during Stop.
const shutdownTimeout = 5 * time.Second

// App is the fully wired application.
type App struct {
	Cfg        *config.GlobalConfig
	Log        *zap.Logger
	Supervisor *supervisor.Supervisor
	API        *api.Server
	Journal    *journal.Journal
	SysService *sysservice.Manager
}

// NewApp builds the App and connects the API's health endpoint to the
// supervisor's event flow.
func NewApp(cfg *config.GlobalConfig, log *zap.Logger, sup *supervisor.Supervisor, apiSrv *api.Server, jrnl *journal.Journal, sysSvc *sysservice.Manager) *App {
	if apiSrv != nil {
		sup.SetNotifier(apiSrv.Health())
	}
	return &App{
		Cfg:        cfg,
		Log:        log,
		Supervisor: sup,
		API:        apiSrv,
		Journal:    jrnl,
		SysService: sysSvc,
	}
}

// Start brings the API surface up (when enabled) and starts the
// supervisor.
func (a *App) Start(ctx context.Context) error {
	if a.API != nil {
		if err := a.API.Start(); err != nil {
			return err
		}
	}
	return a.Supervisor.Start(ctx)
}

// Stop shuts everything down: supervised services first, then the
// outer surfaces.
func (a *App) Stop() error {
	err := a.Supervisor.Stop()
	if a.API != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if apiErr := a.API.Stop(ctx); apiErr != nil {
			a.Log.Warn("api shutdown failed", zap.Error(apiErr))
		}
		cancel()
	}
	if a.Journal != nil {
		if jErr := a.Journal.Close(); jErr != nil {
			a.Log.Warn("journal close failed", zap.Error(jErr))
		}
	}
	_ = a.Log.Sync()
	return err
}
