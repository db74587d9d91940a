package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidfantasy/process-compose/internal/config"
)

type fakeNameLiveness struct {
	running bool
}

func (f *fakeNameLiveness) IsRunningByName(string) bool { return f.running }

func TestHTTPProbe(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer healthy.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	ok, err := (&httpProber{target: healthy.URL}).Probe(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = (&httpProber{target: broken.URL}).Probe(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	// Port 1 is never listening; a refused connection counts as a
	// failed probe so the failure counter advances.
	ok, err = (&httpProber{target: "http://127.0.0.1:1/"}).Probe(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = (&httpProber{target: "://not-a-url"}).Probe(context.Background())
	assert.Error(t, err, "unusable target is a probe error")
}

func TestTCPProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ok, err := (&tcpProber{target: ln.Addr().String()}).Probe(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = (&tcpProber{target: "127.0.0.1:1"}).Probe(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "refused connection is unhealthy, not an error")

	_, err = (&tcpProber{target: "not-an-address"}).Probe(context.Background())
	assert.Error(t, err, "unparsable target is a probe error")
}

func TestCmdProbe(t *testing.T) {
	ok, err := (&cmdProber{target: "true"}).Probe(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = (&cmdProber{target: "false"}).Probe(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "non-zero exit is unhealthy, not an error")

	_, err = (&cmdProber{target: ""}).Probe(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = (&cmdProber{target: "no-such-command-acbd18db"}).Probe(context.Background())
	assert.Error(t, err, "unspawnable command is a probe error")
}

func TestProcessProbe(t *testing.T) {
	liveness := &fakeNameLiveness{running: true}
	p := &processProber{service: "svc", liveness: liveness}

	ok, err := p.Probe(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	liveness.running = false
	ok, err = p.Probe(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewProberSelectsType(t *testing.T) {
	liveness := &fakeNameLiveness{}
	tests := []struct {
		typ  config.CheckType
		want interface{}
	}{
		{config.CheckHTTP, &httpProber{}},
		{config.CheckTCP, &tcpProber{}},
		{config.CheckCmd, &cmdProber{}},
		{config.CheckProcess, &processProber{}},
	}
	for _, tt := range tests {
		p := NewProber("svc", &config.HealthCheckConfig{TestType: tt.typ}, liveness)
		assert.IsType(t, tt.want, p)
	}
}
