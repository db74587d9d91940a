package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidfantasy/process-compose/internal/config"
	"github.com/davidfantasy/process-compose/internal/metrics"
)

func writeTestConfig(t *testing.T) ConfigPath {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
app_data_home: %s
services:
  db:
    start_cmd: ["sleep", "60"]
    log_redirect: false
  web:
    start_cmd: ["sleep", "60"]
    log_redirect: true
    depends_on: [db]
`, filepath.Join(dir, "state"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return ConfigPath(path)
}

func TestInitializeApp(t *testing.T) {
	app, err := InitializeApp(writeTestConfig(t), false)
	require.NoError(t, err)
	t.Cleanup(func() {
		if app.Journal != nil {
			_ = app.Journal.Close()
		}
	})

	assert.NotNil(t, app.Cfg)
	assert.NotNil(t, app.Log)
	assert.NotNil(t, app.Supervisor)
	assert.NotNil(t, app.SysService)
	assert.Nil(t, app.API, "api disabled by default")
	assert.NotNil(t, app.Journal)
}

func TestInitializeAppBadConfig(t *testing.T) {
	_, err := InitializeApp(ConfigPath(filepath.Join(t.TempDir(), "missing.yaml")), false)
	assert.Error(t, err)
}

func TestProvideStartOrderIsDeterministic(t *testing.T) {
	cfg := &config.GlobalConfig{
		Services: map[string]*config.ServiceConfig{
			"c": {Name: "c", StartCmd: []string{"x"}, DependsOn: []string{"a"}},
			"a": {Name: "a", StartCmd: []string{"x"}},
			"b": {Name: "b", StartCmd: []string{"x"}},
		},
	}
	for i := 0; i < 5; i++ {
		order, err := ProvideStartOrder(cfg)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, order)
	}
}

func TestProvideMetrics(t *testing.T) {
	plain := ProvideMetrics(&config.GlobalConfig{})
	assert.Nil(t, plain.Prom)
	assert.IsType(t, metrics.NewNoopRecorder(), plain.Recorder)

	withAPI := ProvideMetrics(&config.GlobalConfig{API: &config.APIConfig{Enable: true}})
	assert.NotNil(t, withAPI.Prom)
	assert.Same(t, withAPI.Prom, withAPI.Recorder)
}
