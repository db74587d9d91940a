package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusRecorder(t *testing.T) {
	r := NewPrometheusRecorder()

	r.ServiceUp("web", true)
	r.ServiceHealthy("web", false)
	r.ServiceStarted("web")
	r.ServiceStarted("web")
	r.ServiceStopped("web")
	r.ServiceExited("web")
	r.RestartRequested("web")

	assert.Equal(t, float64(1), testutil.ToFloat64(r.up.WithLabelValues("web")))
	assert.Equal(t, float64(0), testutil.ToFloat64(r.healthy.WithLabelValues("web")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.started.WithLabelValues("web")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.stopped.WithLabelValues("web")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.exited.WithLabelValues("web")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.restarts.WithLabelValues("web")))

	r.ServiceUp("web", false)
	assert.Equal(t, float64(0), testutil.ToFloat64(r.up.WithLabelValues("web")))
}

func TestNoopRecorder(t *testing.T) {
	r := NewNoopRecorder()
	// Must not panic.
	r.ServiceUp("web", true)
	r.ServiceHealthy("web", true)
	r.ServiceStarted("web")
	r.ServiceStopped("web")
	r.ServiceExited("web")
	r.RestartRequested("web")
}
